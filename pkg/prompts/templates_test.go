package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		name   string
		tmpl   string
		format TemplateFormat
		values map[string]any
		exp    string
	}{
		{
			name:   "go",
			tmpl:   "Tax is {{.tax}}%, free shipping over ${{.threshold}}",
			format: TemplateFormatGoTemplate,
			values: map[string]any{"tax": 8, "threshold": 100},
			exp:    "Tax is 8%, free shipping over $100",
		},
		{
			name:   "sprig",
			tmpl:   `{{ .codes | join ", " }}`,
			format: TemplateFormatGoTemplate,
			values: map[string]any{"codes": []string{"WELCOME10", "SAVE20"}},
			exp:    "WELCOME10, SAVE20",
		},
		{
			name:   "jinja",
			tmpl:   "{% for c in codes %}{{ c }};{% endfor %}",
			format: TemplateFormatJinja2,
			values: map[string]any{"codes": []string{"VIP30", "SAVE20"}},
			exp:    "VIP30;SAVE20;",
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := RenderTemplate(tc.tmpl, tc.format, tc.values)
			require.NoError(t, err)
			assert.Equal(t, tc.exp, out)
		})
	}

	_, err := RenderTemplate("{{.missing}}", TemplateFormatGoTemplate, map[string]any{})
	require.Error(t, err)

	_, err = RenderTemplate("x", "mustache", nil)
	assert.ErrorIs(t, err, ErrInvalidTemplateFormat)
	assert.EqualError(t, err, "mustache, has to be one of [go-template jinja2]: invalid template format")
}

func TestCheckValidTemplate(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckValidTemplate("Hello {{.name}}", TemplateFormatGoTemplate, []string{"name"}))
	require.Error(t, CheckValidTemplate("Hello {{.name", TemplateFormatGoTemplate, []string{"name"}))
	require.Error(t, CheckValidTemplate("Hello", "unknown", nil))
}

func TestParseTemplateFormat(t *testing.T) {
	t.Parallel()

	f, err := ParseTemplateFormat("")
	require.NoError(t, err)
	assert.Equal(t, TemplateFormatGoTemplate, f)

	f, err = ParseTemplateFormat("jinja2")
	require.NoError(t, err)
	assert.Equal(t, TemplateFormatJinja2, f)

	_, err = ParseTemplateFormat("erb")
	assert.ErrorIs(t, err, ErrInvalidTemplateFormat)
}
