package encoding

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/pkg/llmutils"
)

// TypedOutputParser parses output from an LLM into Go structs.
// The struct is described to the model by the encoder of the mode,
// and the decoded value is validated with `validate` tags.
type TypedOutputParser[T any] struct {
	enc      SchemaEncoder
	name     string
	validate bool
}

var _ chatmodel.OutputParser[any] = (*TypedOutputParser[any])(nil)

// NewTypedOutputParser creates an output parser for the structured mode.
// The `json` tags name the fields for JSON, `yaml` and `toml` tags for the other modes,
// and the `jsonschema` description tells the model what to put in the field.
func NewTypedOutputParser[T any](sourceType T, mode Mode) (*TypedOutputParser[T], error) {
	enc, err := PredefinedSchemaEncoder(mode, sourceType)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create encoder")
	}

	return &TypedOutputParser[T]{
		enc:      enc,
		name:     fmt.Sprintf("%T %s parser", sourceType, mode),
		validate: true,
	}, nil
}

// WithValidation enables or disables validation of the parsed value
func (p *TypedOutputParser[T]) WithValidation(validate bool) *TypedOutputParser[T] {
	p.validate = validate
	return p
}

// Parse parses the output of an LLM call.
func (p *TypedOutputParser[T]) Parse(text string) (*T, error) {
	var target T
	if err := p.enc.Unmarshal([]byte(text), &target); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to decode"), chatmodel.ErrFailedUnmarshalOutput)
	}
	if validator, ok := p.enc.(Validator); ok && p.validate {
		if err := validator.Validate(target); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "failed to validate"), chatmodel.ErrFailedUnmarshalOutput)
		}
	}
	return &target, nil
}

// GetFormatInstructions returns a string describing the format of the output.
func (p *TypedOutputParser[T]) GetFormatInstructions() string {
	return p.enc.GetFormatInstructions()
}

// Type returns the string type key uniquely identifying this class of parser
func (p *TypedOutputParser[T]) Type() string {
	return p.name
}

// TextOutputParser returns the reply text of the model
// without the <!-- --> comments.
type TextOutputParser struct{}

// NewTextOutputParser returns the plain text parser
func NewTextOutputParser() chatmodel.OutputParser[chatmodel.String] {
	return &TextOutputParser{}
}

var _ chatmodel.OutputParser[chatmodel.String] = (*TextOutputParser)(nil)

func (p *TextOutputParser) GetFormatInstructions() string { return "" }

func (p *TextOutputParser) Parse(text string) (*chatmodel.String, error) {
	return chatmodel.NewString(strings.TrimSpace(llmutils.RemoveAllComments(text))), nil
}

func (p *TextOutputParser) Type() string { return "text_parser" }
