package web_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/effective-security/shopagent/agent"
	"github.com/effective-security/shopagent/mocks/mockllms"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/store"
	"github.com/effective-security/shopagent/tools/shoptools"
	"github.com/effective-security/shopagent/web"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T) (*httptest.Server, *mockllms.MockModel) {
	ctrl := gomock.NewController(t)
	llm := mockllms.NewMockModel(ctrl)
	llm.EXPECT().GetName().Return("gemini-2.5-flash").AnyTimes()
	llm.EXPECT().GetProviderType().Return(llms.ProviderGoogleAI).AnyTimes()

	a, err := agent.New(context.Background(), nil,
		agent.WithLLM(llm),
		agent.WithStores(&store.Stores{
			Messages: store.NewMemoryStore(),
			Sessions: store.NewMemorySessionStore(store.DefaultTTL),
		}))
	require.NoError(t, err)

	srv := httptest.NewServer(web.NewRouter(a))
	t.Cleanup(srv.Close)
	return srv, llm
}

func do(t *testing.T, method, url, body string, target any) int {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if target != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
	}
	return resp.StatusCode
}

func Test_Index(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "/v1/chat")

	var health map[string]string
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/healthz", "", &health))
	assert.Equal(t, "ok", health["status"])

	var notFound web.ErrorResponse
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, srv.URL+"/v2/chat", "", &notFound))
	assert.Equal(t, "not found: /v2/chat", notFound.Error)
}

func Test_Tools(t *testing.T) {
	srv, _ := newServer(t)

	var res struct {
		Tools []web.ToolInfo `json:"tools"`
	}
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/v1/tools", "", &res))
	require.Len(t, res.Tools, 11)
	assert.Equal(t, "search_product", res.Tools[0].Name)
	assert.NotEmpty(t, res.Tools[0].Description)
	require.NotNil(t, res.Tools[0].Parameters)
	_, ok := res.Tools[0].Parameters.Properties.Get("product_name")
	assert.True(t, ok)
}

func Test_Chat(t *testing.T) {
	srv, llm := newServer(t)

	gomock.InOrder(
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&llms.ContentResponse{
				Choices: []*llms.ContentChoice{{
					ToolCalls: []llms.ToolCall{{
						ID:           "c1",
						Type:         "function",
						FunctionCall: &llms.FunctionCall{Name: "add_to_cart", Arguments: `{"product":"monitor 4k"}`},
					}},
				}},
			}, nil),
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&llms.ContentResponse{
				Choices: []*llms.ContentChoice{{
					Content: `{"reply":"Monitor added","suggested_actions":["View cart"]}`,
				}},
			}, nil),
	)

	var res web.ChatResponse
	require.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/v1/chat", `{"message":"add the monitor"}`, &res))
	require.NotEmpty(t, res.SessionID)
	assert.Equal(t, "Monitor added", res.Reply)
	require.NotNil(t, res.Output)
	assert.Equal(t, []string{"View cart"}, res.Output.SuggestedActions)

	var cart shoptools.CalculateTotalResponse
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/v1/sessions/"+res.SessionID+"/cart", "", &cart))
	require.Len(t, cart.Products, 1)
	assert.Equal(t, "Monitor 4K HDR", cart.Products[0].Name)
	// 400 + 8% tax, free shipping
	assert.Equal(t, "$432.00", cart.Total)

	var sessions struct {
		Sessions []string `json:"sessions"`
	}
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/v1/sessions", "", &sessions))
	assert.Equal(t, []string{res.SessionID}, sessions.Sessions)

	var reset map[string]any
	require.Equal(t, http.StatusOK, do(t, http.MethodDelete, srv.URL+"/v1/sessions/"+res.SessionID, "", &reset))
	assert.Equal(t, true, reset["reset"])

	cart = shoptools.CalculateTotalResponse{}
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/v1/sessions/"+res.SessionID+"/cart", "", &cart))
	assert.Empty(t, cart.Products)
	assert.Equal(t, "$0.00", cart.Total)
}

func Test_Chat_Errors(t *testing.T) {
	srv, llm := newServer(t)

	var eres web.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/v1/chat", `{"session_id":"s1"}`, &eres))
	assert.Contains(t, eres.Error, "invalid request")

	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/v1/chat", `not json`, &eres))

	// the reply is required
	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&llms.ContentResponse{
			Choices: []*llms.ContentChoice{{Content: `{"products":[]}`}},
		}, nil)
	assert.Equal(t, http.StatusBadGateway, do(t, http.MethodPost, srv.URL+"/v1/chat", `{"session_id":"s1","message":"hi"}`, &eres))
	assert.NotEmpty(t, eres.Error)

	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, context.DeadlineExceeded)
	eres = web.ErrorResponse{}
	assert.Equal(t, http.StatusInternalServerError, do(t, http.MethodPost, srv.URL+"/v1/chat", `{"session_id":"s1","message":"hi"}`, &eres))
	assert.Contains(t, eres.Error, "failed to generate content from LLM")
}
