package llms_test

import (
	"encoding/json"
	"testing"

	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextParts(t *testing.T) {
	t.Parallel()
	mc := llms.MessageFromTextParts(llms.RoleHuman, "a", "b", "c")
	assert.Equal(t, llms.RoleHuman, mc.Role)
	assert.Equal(t, []llms.ContentPart{
		llms.TextContent{Text: "a"},
		llms.TextContent{Text: "b"},
		llms.TextContent{Text: "c"},
	}, mc.Parts)
}

func Test_Message_JSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		msg     llms.Message
		js      string
		content string
	}{
		{
			"text",
			llms.MessageFromTextParts(llms.RoleHuman, "a", "b"),
			`{"role":"human","parts":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`,
			"a\nb\n",
		},
		{
			"binary",
			llms.MessageFromParts(llms.RoleHuman, llms.BinaryPart("image/png", []byte{0x00, 0x01, 0x02})),
			`{"role":"human","parts":[{"type":"binary","binary":{"mime_type":"image/png","data":"AAEC"}}]}`,
			"Binary: image/png\nAAEC\n",
		},
		{
			"image_url",
			llms.MessageFromParts(llms.RoleHuman, llms.ImageURLWithDetailPart("https://example.com/a.png", "low")),
			`{"role":"human","parts":[{"type":"image_url","image_url":{"url":"https://example.com/a.png","detail":"low"}}]}`,
			"URL: https://example.com/a.png\n",
		},
		{
			"tool_call",
			llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
				ID:   "call_1",
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      "view_cart",
					Arguments: "{}",
				},
			}),
			`{"role":"ai","parts":[{"type":"tool_call","tool_call":{"id":"call_1","type":"function","function":{"name":"view_cart","arguments":"{}"}}}]}`,
			"Tool Call: {\"id\":\"call_1\",\"type\":\"function\",\"function\":{\"name\":\"view_cart\",\"arguments\":\"{}\"}}\n",
		},
		{
			"tool_response",
			llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
				ToolCallID: "call_1",
				Name:       "view_cart",
				Content:    `{"status":"empty"}`,
			}),
			`{"role":"tool","parts":[{"type":"tool_response","tool_response":{"tool_call_id":"call_1","name":"view_cart","content":"{\"status\":\"empty\"}"}}]}`,
			"Response: {\"tool_call_id\":\"call_1\",\"name\":\"view_cart\",\"content\":\"{\\\"status\\\":\\\"empty\\\"}\"}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			js, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.js, string(js))
			assert.Equal(t, tt.content, tt.msg.GetContent())

			var msg llms.Message
			require.NoError(t, json.Unmarshal(js, &msg))
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func Test_Message_UnmarshalErrors(t *testing.T) {
	t.Parallel()
	var msg llms.Message
	err := json.Unmarshal([]byte(`{"role":"human","parts":[{"type":"video"}]}`), &msg)
	assert.EqualError(t, err, `unknown content part type: "video"`)

	err = json.Unmarshal([]byte(`{"role":"ai","parts":[{"type":"tool_call"}]}`), &msg)
	assert.EqualError(t, err, "missing tool_call in tool_call part")
}

func TestContentResponse(t *testing.T) {
	t.Parallel()

	var r *llms.ContentResponse
	in, out := r.GetUsage()
	assert.Zero(t, in)
	assert.Zero(t, out)
	assert.Empty(t, r.GetToolCalls())

	r = &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content: "hi",
				GenerationInfo: map[string]any{
					llms.InputTokens:  int32(10),
					llms.OutputTokens: int64(5),
				},
				ToolCalls: []llms.ToolCall{{ID: "1", FunctionCall: &llms.FunctionCall{Name: "a"}}},
			},
			{
				ToolCalls: []llms.ToolCall{{ID: "2", FunctionCall: &llms.FunctionCall{Name: "b"}}},
			},
		},
	}
	in, out = r.GetUsage()
	assert.Equal(t, 10, in)
	assert.Equal(t, 5, out)
	assert.Len(t, r.GetToolCalls(), 2)
}

func TestProviderType(t *testing.T) {
	t.Parallel()
	assert.Equal(t, llms.ProviderOpenAI, llms.ParseProviderType("open_ai"))
	assert.Equal(t, llms.ProviderOpenAI, llms.ParseProviderType("OPENAI"))
	assert.Equal(t, llms.ProviderGoogleAI, llms.ParseProviderType(" googleai "))
	assert.Equal(t, llms.ProviderBedrock, llms.ParseProviderType("bedrock"))

	assert.True(t, llms.ProviderOpenAI.Supports(llms.CapabilityJSONSchema|llms.CapabilityFunctionCalling))
	assert.False(t, llms.ProviderGoogleAI.Supports(llms.CapabilityJSONSchema))
	assert.True(t, llms.ProviderAnthropic.Supports(llms.CapabilitySystemPrompt))
	assert.False(t, llms.ProviderType("UNKNOWN").Supports(llms.CapabilityText))
}
