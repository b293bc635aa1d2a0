package llms_test

import (
	"testing"

	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/pkg/schema"
	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	t.Parallel()
	tools := []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name: "test",
			},
		},
	}
	meta := map[string]any{"test": "test"}
	rf := &schema.ResponseFormat{
		Type: "json_schema",
	}

	opts := llms.NewCallOptions(
		llms.WithModel("test"),
		llms.WithMaxTokens(100),
		llms.WithTemperature(0.5),
		llms.WithStopWords([]string{"stop"}),
		llms.WithTopK(10),
		llms.WithTopP(0.5),
		llms.WithSeed(123),
		llms.WithCandidateCount(1),
		llms.WithToolChoice("auto"),
		llms.WithTools(tools),
		llms.WithMetadata(meta),
		llms.WithResponseFormat(rf),
	)

	assert.Equal(t, "test", opts.Model)
	assert.Equal(t, 100, opts.MaxTokens)
	assert.Equal(t, 0.5, opts.Temperature)
	assert.Equal(t, []string{"stop"}, opts.StopWords)
	assert.Equal(t, 10, opts.TopK)
	assert.Equal(t, 0.5, opts.TopP)
	assert.Equal(t, 123, opts.Seed)
	assert.Equal(t, 1, opts.CandidateCount)
	assert.Equal(t, "auto", opts.ToolChoice)
	assert.Equal(t, tools, opts.Tools)
	assert.Equal(t, meta, opts.Metadata)
	assert.Equal(t, rf, opts.ResponseFormat)

	copied := llms.NewCallOptions(llms.WithOptions(*opts))
	assert.Equal(t, opts, copied)
}
