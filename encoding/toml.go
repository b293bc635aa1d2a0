package encoding

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/effective-security/shopagent/pkg/llmutils"
)

// TOMLEncoder describes the reply type with a TOML example
// followed by the list of the fields.
type TOMLEncoder struct {
	typeSchema
}

// NewTOMLEncoder returns the encoder for the type of req
func NewTOMLEncoder(req any) (*TOMLEncoder, error) {
	ts, err := newTypeSchema(req)
	if err != nil {
		return nil, err
	}
	return &TOMLEncoder{typeSchema: ts}, nil
}

func (e *TOMLEncoder) Marshal(v any) ([]byte, error) {
	return toml.Marshal(v)
}

func (e *TOMLEncoder) Unmarshal(bs []byte, ret any) error {
	_, err := toml.Decode(string(llmutils.BytesTrimBackticks(bs)), ret)
	return err
}

func (e *TOMLEncoder) GetFormatInstructions() string {
	example, err := e.Marshal(e.sample())
	if err != nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nReply with a single TOML document like this example:\n")
	b.WriteString("```toml\n")
	b.Write(example)
	b.WriteString("```\n")
	if fields := e.fields(); len(fields) > 0 {
		b.WriteString("The fields are:\n")
		for _, f := range fields {
			req := ""
			if f.Required {
				req = ", required"
			}
			fmt.Fprintf(&b, "- %s (%s%s): %s\n", f.Path, f.Type, req, f.Description)
		}
	}
	b.WriteString("Return your own values in the same structure.\n")
	return b.String()
}
