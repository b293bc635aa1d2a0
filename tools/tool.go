package tools

import (
	"context"

	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/shopagent", "tools")

//go:generate mockgen -source=tool.go -destination=../mocks/mocktools/tool_mock.gen.go -package mocktools

// ITool is a tool for the llm agent to interact with different applications.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	// Should not exceed LLM model limit.
	Description() string
	// Parameters returns the parameters definition of the function, to be used in the prompt.
	Parameters() *jsonschema.Schema

	// Call executes the tool with the given JSON input and returns the JSON result.
	// If the tool fails to parse the input, it should return ErrFailedUnmarshalInput error.
	// Precondition failures are reported in the result status, not as an error.
	Call(context.Context, string) (string, error)
}

// ReadOnlyTool is implemented by the tools that do not change any state.
// The assistant runs consecutive read-only calls in parallel,
// any other call runs alone in the order of the model response.
type ReadOnlyTool interface {
	ReadOnly() bool
}

// IsReadOnly returns true when the tool reports that it does not change state
func IsReadOnly(t ITool) bool {
	ro, ok := t.(ReadOnlyTool)
	return ok && ro.ReadOnly()
}

// Callback receives tool events from the assistant loop
type Callback interface {
	OnToolStart(ctx context.Context, tool ITool, assistantName, input string)
	OnToolEnd(ctx context.Context, tool ITool, assistantName, input string, output string)
	OnToolError(ctx context.Context, tool ITool, assistantName, input string, err error)
}

// Tool is a typed tool
type Tool[I any, O any] interface {
	ITool
	Run(context.Context, *I) (*O, error)
}
