package llmutils

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// MaxImageSize is the limit of the downloaded image
const MaxImageSize = 20 << 20

// DownloadImageData downloads the content from the given URL and returns the
// MIME type and data.
func DownloadImageData(ctx context.Context, url string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, errors.Wrap(err, "invalid image url")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to fetch image from url")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, errors.Newf("failed to fetch image: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize))
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to read image bytes")
	}

	mimeType, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	if !strings.HasPrefix(mimeType, "image/") {
		return "", nil, errors.Newf("invalid mime type %q", mimeType)
	}

	return mimeType, data, nil
}
