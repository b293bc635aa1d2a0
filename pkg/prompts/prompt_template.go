package prompts

import (
	"maps"

	"github.com/cockroachdb/errors"
)

// ErrNeedChatMessageList is returned when the variable is not a list of chat messages.
var ErrNeedChatMessageList = errors.New("variable should be a list of chat messages")

// Formatter is an interface for formatting a map of values into a string.
type Formatter interface {
	Format(values map[string]any) (string, error)
}

// PromptTemplate contains common fields for all prompt templates.
type PromptTemplate struct {
	// Template is the prompt template.
	Template string

	// A list of variable names the prompt template expects.
	InputVariables []string

	// TemplateFormat is the format of the prompt template.
	TemplateFormat TemplateFormat

	// PartialVariables represents a map of variable names to values or functions
	// that return values. If the value is a function, it will be called when the
	// prompt template is rendered.
	PartialVariables map[string]any
}

var _ Formatter = PromptTemplate{}

// NewPromptTemplate returns a new prompt template with go-template format.
func NewPromptTemplate(template string, inputVars []string) PromptTemplate {
	return PromptTemplate{
		Template:       template,
		InputVariables: inputVars,
		TemplateFormat: TemplateFormatGoTemplate,
	}
}

// Format formats the prompt template and returns a string value.
func (p PromptTemplate) Format(values map[string]any) (string, error) {
	resolvedValues, err := resolvePartialValues(p.PartialVariables, values)
	if err != nil {
		return "", err
	}
	for _, v := range p.InputVariables {
		if _, ok := resolvedValues[v]; !ok {
			return "", errors.Newf("missing input variable %q", v)
		}
	}
	return RenderTemplate(p.Template, p.TemplateFormat, resolvedValues)
}

// GetInputVariables returns the input variables the prompt expect.
func (p PromptTemplate) GetInputVariables() []string {
	return p.InputVariables
}

func resolvePartialValues(partialValues map[string]any, values map[string]any) (map[string]any, error) {
	resolvedValues := make(map[string]any, len(partialValues)+len(values))
	for variable, value := range partialValues {
		switch value := value.(type) {
		case string:
			resolvedValues[variable] = value
		case func() string:
			resolvedValues[variable] = value()
		default:
			return nil, errors.Newf("invalid partial variable type: %s", variable)
		}
	}
	maps.Copy(resolvedValues, values)
	return resolvedValues, nil
}
