package prompts

import (
	"testing"

	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatPromptTemplate(t *testing.T) {
	t.Parallel()

	template := NewChatPromptTemplate([]MessageFormatter{
		NewSystemMessagePromptTemplate(
			"You are a shopping assistant of {{.store}}.",
			[]string{"store"},
		),
		MessagesPlaceholder{VariableName: "history"},
		NewHumanMessagePromptTemplate(
			`find {{.product | upper}} under {{.budget}}`,
			[]string{"product", "budget"},
		),
	})
	assert.Equal(t, []string{"store", "history", "product", "budget"}, template.GetInputVariables())

	history := []llms.Message{llms.MessageFromTextParts(llms.RoleAI, "Hello!")}
	value, err := template.FormatPrompt(map[string]any{
		"store":   "TechStore",
		"history": history,
		"product": "mouse",
		"budget":  "$100",
	})
	require.NoError(t, err)
	expectedMessages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a shopping assistant of TechStore."),
		llms.MessageFromTextParts(llms.RoleAI, "Hello!"),
		llms.MessageFromTextParts(llms.RoleHuman, `find MOUSE under $100`),
	}
	require.Equal(t, expectedMessages, value.Messages())
	assert.Contains(t, value.String(), "Human: find MOUSE under $100")

	_, err = template.FormatPrompt(map[string]any{
		"store":   "TechStore",
		"product": "mouse",
	})
	assert.EqualError(t, err, `missing input variable "budget"`)

	_, err = template.FormatPrompt(map[string]any{
		"store":   "TechStore",
		"history": "not a list",
		"product": "mouse",
		"budget":  "$100",
	})
	assert.ErrorIs(t, err, ErrNeedChatMessageList)
}

func TestChatPromptTemplatePartial(t *testing.T) {
	t.Parallel()

	template := ChatPromptTemplate{
		Messages: []MessageFormatter{
			NewAIMessagePromptTemplate("{{.greeting}}, {{.name}}", []string{"greeting", "name"}),
		},
		PartialVariables: map[string]any{
			"greeting": func() string { return "Hi" },
		},
	}
	msgs, err := template.FormatMessages(map[string]any{"name": "Ana"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hi, Ana\n", msgs[0].GetContent())

	s, err := template.Format(map[string]any{"name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "AI: Hi, Ana\n", s)

	template.PartialVariables["bad"] = 1
	_, err = template.Format(map[string]any{"name": "Ana"})
	assert.EqualError(t, err, "invalid partial variable type: bad")
}
