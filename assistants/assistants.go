package assistants

import (
	"context"

	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/pkg/prompts"
	"github.com/effective-security/shopagent/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/shopagent", "assistants")

// PromptFormatter renders the system prompt of the assistant
type PromptFormatter interface {
	prompts.Formatter
	GetInputVariables() []string
}

// ProvidePromptInputsFunc returns extra system prompt inputs for the user input
type ProvidePromptInputsFunc func(ctx context.Context, input string) (map[string]any, error)

// CallInput is the input of an assistant call
type CallInput struct {
	// Input is the user message
	Input string
	// PromptInputs are merged with the configured prompt inputs
	PromptInputs map[string]any
	// Messages are appended after the user message
	Messages []llms.Message
	// Options override the assistant config for this call only
	Options []Option
}

type IAssistant interface {
	// Name returns the name of the Assistant.
	Name() string
	// Description returns the description of the Assistant, to be used in the prompt of other Assistants or LLMs.
	Description() string
	// FormatPrompt renders the system prompt template with the values.
	FormatPrompt(values map[string]any) (string, error)
	GetPromptInputVariables() []string

	Call(ctx context.Context, input *CallInput) (*llms.ContentResponse, error)
}

type TypeableAssistant[O chatmodel.ContentProvider] interface {
	IAssistant
	// Run executes the assistant and decodes the final response into output.
	Run(ctx context.Context, input *CallInput, output *O) (*llms.ContentResponse, error)
}

// Callback receives the events of the assistant loop
type Callback interface {
	tools.Callback
	OnAssistantStart(ctx context.Context, a IAssistant, input string)
	OnAssistantEnd(ctx context.Context, a IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message)
	OnAssistantError(ctx context.Context, a IAssistant, input string, err error, messages []llms.Message)
	OnAssistantLLMCallStart(ctx context.Context, a IAssistant, llm llms.Model, payload []llms.Message)
	OnAssistantLLMCallEnd(ctx context.Context, a IAssistant, llm llms.Model, resp *llms.ContentResponse)
	OnAssistantLLMParseError(ctx context.Context, a IAssistant, input string, response string, err error)
	OnToolNotFound(ctx context.Context, a IAssistant, tool string)
}
