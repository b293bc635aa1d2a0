package websearch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	tavilygo "github.com/diverged/tavily-go"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/shopagent/pkg/metricskey"
	"github.com/effective-security/shopagent/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/shopagent/tools", "websearch")

// ToolName is the name of the web search tool
const ToolName = "websearch"

// EnvAPIKey is the environment variable holding the Tavily API key
const EnvAPIKey = "TAVILY_API_KEY"

// SearchRequest represents the tool input.
type SearchRequest struct {
	Query      string `json:"query" yaml:"query" jsonschema:"description=The query to search the web for."`
	MaxResults int    `json:"max_results,omitempty" yaml:"max_results,omitempty" jsonschema:"description=Maximum number of results to return (default 5)."`
}

// SearchResult is a single web page found by the search
type SearchResult struct {
	Title   string  `json:"title" yaml:"title"`
	URL     string  `json:"url" yaml:"url"`
	Content string  `json:"content" yaml:"content"`
	Score   float64 `json:"score" yaml:"score"`
}

// SearchResponse represents the tool output
type SearchResponse struct {
	tools.Result
	Answer  string         `json:"answer,omitempty" yaml:"answer,omitempty"`
	Results []SearchResult `json:"results,omitempty" yaml:"results,omitempty"`
}

// Tool is a tool that provides a web search functionality
type Tool struct {
	*tools.Function[SearchRequest, SearchResponse]

	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ensure Tool implements the typed tool interface
var _ tools.Tool[SearchRequest, SearchResponse] = (*Tool)(nil)

// Enabled returns true when the API key is configured
func Enabled() bool {
	return os.Getenv(EnvAPIKey) != ""
}

// New returns the web search tool,
// empty apiKey is read from TAVILY_API_KEY.
func New(apiKey string) (*Tool, error) {
	apiKey = values.StringsCoalesce(apiKey, os.Getenv(EnvAPIKey))
	if apiKey == "" {
		return nil, errors.Newf("%s is not set", EnvAPIKey)
	}

	t := &Tool{
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
	f, err := tools.NewFunction(ToolName,
		"Searches the web for up to date information that is not in the product catalog, such as reviews or comparisons. Read-only.",
		t.search)
	if err != nil {
		return nil, err
	}
	t.Function = f.WithReadOnly()
	return t, nil
}

// WithBaseURL overrides the API endpoint
func (t *Tool) WithBaseURL(baseURL string) *Tool {
	t.baseURL = baseURL
	return t
}

// WithHTTPClient overrides the HTTP client
func (t *Tool) WithHTTPClient(client *http.Client) *Tool {
	t.httpClient = client
	return t
}

func (t *Tool) search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return &SearchResponse{Result: tools.Errorf("query must not be empty")}, nil
	}
	maxResults := values.NumbersCoalesce(req.MaxResults, 5)

	client := tavilygo.NewClient(t.apiKey)
	if t.baseURL != "" {
		client.BaseURL = t.baseURL
	}
	if t.httpClient != nil {
		client.HTTPClient = t.httpClient
	}

	searchResp, err := tavilygo.Search(client, tavilyModels.SearchRequest{
		Query:         query,
		SearchDepth:   "basic",
		IncludeAnswer: true,
	})
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "search_failed",
			"query", query,
			"err", err.Error(),
		)
		return nil, errors.Wrap(err, "failed to perform search")
	}
	metricskey.StatsShopSearches.IncrCounter(1, ToolName)

	res := &SearchResponse{
		Answer: searchResp.Answer,
	}
	for i, r := range searchResp.Results {
		if i >= maxResults {
			break
		}
		res.Results = append(res.Results, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	if len(res.Results) == 0 && res.Answer == "" {
		metricskey.StatsShopSearchesNotFound.IncrCounter(1, ToolName)
		res.Result = tools.Empty(fmt.Sprintf("no results for %q", query))
		return res, nil
	}
	res.Result = tools.Successf("found %d results", len(res.Results))
	return res, nil
}

func (r *SearchResponse) String() string {
	var buf bytes.Buffer
	if r.Answer != "" {
		fmt.Fprintf(&buf, "ANSWER: %s\n", r.Answer)
	}

	for _, result := range r.Results {
		fmt.Fprintf(&buf, "- URL: %s\n", result.URL)
		fmt.Fprintf(&buf, "  TITLE: %s\n", result.Title)
		fmt.Fprintf(&buf, "  SCORE: %f\n", result.Score)
		fmt.Fprintf(&buf, "  CONTENT: %s\n", result.Content)
	}

	return buf.String()
}
