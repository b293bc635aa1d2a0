package chatmodel

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

var (
	// ErrFailedUnmarshalInput is returned by a tool when the model supplied arguments
	// that do not match the tool's schema.
	ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")
	// ErrFailedUnmarshalOutput is returned by an output parser when the final
	// response does not decode into the declared output type.
	ErrFailedUnmarshalOutput = errors.New("failed to unmarshal output: check the schema and try again")
	// ErrInvalidChatContext is returned when the context carries no chat context.
	ErrInvalidChatContext = errors.New("invalid chat context")
)

// ContentProvider is implemented by the typed outputs of an assistant,
// GetContent returns the text to keep in the chat history.
type ContentProvider interface {
	GetContent() string
}

// OutputParser is an interface for parsing the output of an LLM call.
type OutputParser[T any] interface {
	// Parse parses the output of an LLM call.
	// If the parser fails to decode the text, it should return ErrFailedUnmarshalOutput error.
	Parse(text string) (*T, error)
	// GetFormatInstructions returns a string describing the format of the output.
	GetFormatInstructions() string
	// Type returns the string type key uniquely identifying this class of parser
	Type() string
}

type Stringer interface {
	String() string
}

func Stringify(s any) string {
	if v, ok := s.(Stringer); ok {
		return v.String()
	}
	if v, ok := s.(ContentProvider); ok {
		return v.GetContent()
	}
	bs, _ := json.Marshal(s)
	return string(bs)
}

type FewShotExample struct {
	Prompt     string `json:"prompt" yaml:"prompt"`
	Completion string `json:"completion" yaml:"completion"`
}

type FewShotExamples []FewShotExample
