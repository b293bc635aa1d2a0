package anthropic_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/pkg/llms/anthropic"
	"github.com/effective-security/shopagent/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Setenv(anthropic.TokenEnvVarName, "")

	_, err := anthropic.New(anthropic.WithModel("claude-sonnet-4-5"))
	assert.ErrorIs(t, err, anthropic.ErrMissingToken)

	_, err = anthropic.New(anthropic.WithToken("fake-token"))
	assert.EqualError(t, err, "anthropic: model is required")

	llm, err := anthropic.New(
		anthropic.WithToken("fake-token"),
		anthropic.WithModel("claude-sonnet-4-5"),
		anthropic.WithBaseURL("https://custom.anthropic.com"),
		anthropic.WithHTTPClient(&http.Client{}),
		anthropic.WithAnthropicBetaHeader("beta-feature-1"),
		anthropic.WithMaxRetries(0),
	)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", llm.GetName())
	assert.Equal(t, llms.ProviderAnthropic, llm.GetProviderType())
}

func TestProcessMessages(t *testing.T) {
	t.Parallel()

	msgs := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a shop assistant"),
		llms.MessageFromTextParts(llms.RoleHuman, "add a mouse and a keyboard"),
		llms.MessageFromToolCalls(llms.RoleAI,
			llms.ToolCall{ID: "t1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "add_to_cart", Arguments: `{"product":"mouse"}`}},
			llms.ToolCall{ID: "t2", Type: "function", FunctionCall: &llms.FunctionCall{Name: "add_to_cart", Arguments: `{"product":"teclado"}`}},
		),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{ToolCallID: "t1", Name: "add_to_cart", Content: `{"status":"success"}`}),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{ToolCallID: "t2", Name: "add_to_cart", Content: `{"status":"success"}`}),
		{Role: llms.RoleHuman},
	}

	res, system, err := anthropic.ProcessMessages(msgs)
	require.NoError(t, err)
	assert.Equal(t, "You are a shop assistant", system)
	require.Len(t, res, 3)
	assert.Equal(t, "user", string(res[0].Role))
	assert.Equal(t, "assistant", string(res[1].Role))
	assert.Len(t, res[1].Content, 2)
	// both tool results are merged into one user message
	assert.Equal(t, "user", string(res[2].Role))
	assert.Len(t, res[2].Content, 2)

	_, _, err = anthropic.ProcessMessages([]llms.Message{llms.MessageFromTextParts("robot", "x")})
	assert.ErrorIs(t, err, anthropic.ErrUnsupportedMessageType)

	_, _, err = anthropic.ProcessMessages([]llms.Message{
		llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{ID: "x", FunctionCall: &llms.FunctionCall{Name: "x", Arguments: "{"}}),
	})
	assert.EqualError(t, err, "anthropic: invalid tool call arguments for x")

	_, _, err = anthropic.ProcessMessages([]llms.Message{
		llms.MessageFromParts(llms.RoleTool, llms.TextPart("oops")),
	})
	assert.ErrorIs(t, err, anthropic.ErrInvalidContentType)
}

type addToCart struct {
	Product  string `json:"product" jsonschema:"description=Product name"`
	Quantity *int   `json:"quantity,omitempty" jsonschema:"description=Units to add"`
}

func TestToTools(t *testing.T) {
	t.Parallel()
	assert.Nil(t, anthropic.ToTools(nil))

	sc, err := schema.New(reflect.TypeOf(addToCart{}))
	require.NoError(t, err)

	tools := anthropic.ToTools([]llms.Tool{
		{Type: "function", Function: &llms.FunctionDefinition{Name: "add_to_cart", Description: "Add", Parameters: sc.Parameters}},
		{Type: "function", Function: &llms.FunctionDefinition{Name: "view_cart", Description: "View"}},
	})
	require.Len(t, tools, 2)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "add_to_cart", tools[0].OfTool.Name)
	assert.Equal(t, []string{"product"}, tools[0].OfTool.InputSchema.Required)
	props, ok := tools[0].OfTool.InputSchema.Properties.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "product")
	assert.Contains(t, props, "quantity")
}

func TestGenerateContent(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"content": [
				{"type": "text", "text": "Let me check "},
				{"type": "text", "text": "your cart."},
				{"type": "tool_use", "id": "toolu_1", "name": "view_cart", "input": {}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`))
	}))
	defer srv.Close()

	llm, err := anthropic.New(
		anthropic.WithToken("fake-token"),
		anthropic.WithModel("claude-sonnet-4-5"),
		anthropic.WithBaseURL(srv.URL+"/"),
		anthropic.WithMaxRetries(0),
	)
	require.NoError(t, err)

	resp, err := llm.GenerateContent(context.Background(),
		[]llms.Message{
			llms.MessageFromTextParts(llms.RoleSystem, "system prompt"),
			llms.MessageFromTextParts(llms.RoleHuman, "what is in my cart?"),
		},
		llms.WithTemperature(0.3),
		llms.WithMaxTokens(800),
		llms.WithTools([]llms.Tool{{Type: "function", Function: &llms.FunctionDefinition{Name: "view_cart", Description: "View"}}}),
	)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)

	c := resp.Choices[0]
	assert.Equal(t, "Let me check your cart.", c.Content)
	assert.Equal(t, "tool_use", c.StopReason)
	require.Len(t, c.ToolCalls, 1)
	assert.Equal(t, "toolu_1", c.ToolCalls[0].ID)
	assert.Equal(t, "view_cart", c.ToolCalls[0].FunctionCall.Name)
	assert.Equal(t, "{}", c.ToolCalls[0].FunctionCall.Arguments)

	in, out := resp.GetUsage()
	assert.Equal(t, 12, in)
	assert.Equal(t, 7, out)

	require.NotNil(t, captured)
	assert.Equal(t, "claude-sonnet-4-5", captured["model"])
	assert.Equal(t, float64(800), captured["max_tokens"])
	assert.Equal(t, 0.3, captured["temperature"])
	assert.Len(t, captured["tools"], 1)
}
