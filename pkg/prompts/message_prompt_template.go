package prompts

import (
	"github.com/effective-security/shopagent/pkg/llms"
)

// MessageFormatter is an interface for formatting a map of values into a list
// of messages.
type MessageFormatter interface {
	FormatMessages(values map[string]any) ([]llms.Message, error)
	GetInputVariables() []string
}

// MessagePromptTemplate is a prompt template rendered into a single message with the role.
type MessagePromptTemplate struct {
	Role   llms.Role
	Prompt PromptTemplate
}

var _ MessageFormatter = MessagePromptTemplate{}

// FormatMessages formats the message with the values given.
func (p MessagePromptTemplate) FormatMessages(values map[string]any) ([]llms.Message, error) {
	text, err := p.Prompt.Format(values)
	if err != nil {
		return nil, err
	}
	return []llms.Message{llms.MessageFromTextParts(p.Role, text)}, nil
}

// GetInputVariables returns the input variables the prompt expects.
func (p MessagePromptTemplate) GetInputVariables() []string {
	return p.Prompt.InputVariables
}

// NewSystemMessagePromptTemplate creates a new system message prompt template.
func NewSystemMessagePromptTemplate(template string, inputVariables []string) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleSystem, Prompt: NewPromptTemplate(template, inputVariables)}
}

// NewHumanMessagePromptTemplate creates a new human message prompt template.
func NewHumanMessagePromptTemplate(template string, inputVariables []string) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleHuman, Prompt: NewPromptTemplate(template, inputVariables)}
}

// NewAIMessagePromptTemplate creates a new AI message prompt template.
func NewAIMessagePromptTemplate(template string, inputVariables []string) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleAI, Prompt: NewPromptTemplate(template, inputVariables)}
}

// MessagesPlaceholder is a prompt template that takes the list of messages
// from the variable.
type MessagesPlaceholder struct {
	VariableName string
}

// FormatMessages returns the messages of the variable.
func (p MessagesPlaceholder) FormatMessages(values map[string]any) ([]llms.Message, error) {
	value, ok := values[p.VariableName]
	if !ok {
		return nil, nil
	}
	msgs, ok := value.([]llms.Message)
	if !ok {
		return nil, ErrNeedChatMessageList
	}
	return msgs, nil
}

// GetInputVariables returns the input variables the prompt expect.
func (p MessagesPlaceholder) GetInputVariables() []string {
	return []string{p.VariableName}
}
