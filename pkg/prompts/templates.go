package prompts

import (
	"bytes"
	"slices"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/nikolalohinski/gonja"
)

// ErrInvalidTemplateFormat is the error when the template format is invalid and
// not supported.
var ErrInvalidTemplateFormat = errors.New("invalid template format")

// TemplateFormat is the format of the template.
type TemplateFormat string

const (
	// TemplateFormatGoTemplate is the format for go-template, with sprig functions.
	TemplateFormatGoTemplate TemplateFormat = "go-template"
	// TemplateFormatJinja2 is the format for jinja2.
	TemplateFormatJinja2 TemplateFormat = "jinja2"
)

// ParseTemplateFormat returns the template format, go-template by default.
func ParseTemplateFormat(s string) (TemplateFormat, error) {
	switch TemplateFormat(s) {
	case "", TemplateFormatGoTemplate, "go":
		return TemplateFormatGoTemplate, nil
	case TemplateFormatJinja2, "jinja":
		return TemplateFormatJinja2, nil
	}
	return "", errors.Wrapf(ErrInvalidTemplateFormat, "%q", s)
}

// interpolator is the function that interpolates the given template with the given values.
type interpolator func(template string, values map[string]any) (string, error)

var defaultFormatterMapping = map[TemplateFormat]interpolator{
	TemplateFormatGoTemplate: interpolateGoTemplate,
	TemplateFormatJinja2:     interpolateJinja2,
}

// interpolateGoTemplate interpolates the given template with the given values by using
// text/template and sprig functions.
func interpolateGoTemplate(tmpl string, values map[string]any) (string, error) {
	parsedTmpl, err := template.New("template").
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(tmpl)
	if err != nil {
		return "", errors.WithStack(err)
	}
	sb := new(bytes.Buffer)
	err = parsedTmpl.Execute(sb, values)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return sb.String(), nil
}

// interpolateJinja2 interpolates the given template with the given values by using
// gonja.
func interpolateJinja2(tmpl string, values map[string]any) (string, error) {
	tpl, err := gonja.FromString(tmpl)
	if err != nil {
		return "", errors.WithStack(err)
	}
	out, err := tpl.Execute(values)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return out, nil
}

func newInvalidTemplateError(gotTemplateFormat TemplateFormat) error {
	formats := make([]string, 0, len(defaultFormatterMapping))
	for k := range defaultFormatterMapping {
		formats = append(formats, string(k))
	}
	slices.Sort(formats)
	return errors.Wrapf(ErrInvalidTemplateFormat,
		"%s, has to be one of %v", gotTemplateFormat, formats)
}

// CheckValidTemplate checks if the template is valid through checking whether the given
// TemplateFormat is available and whether the template can be rendered.
func CheckValidTemplate(template string, templateFormat TemplateFormat, inputVariables []string) error {
	_, ok := defaultFormatterMapping[templateFormat]
	if !ok {
		return newInvalidTemplateError(templateFormat)
	}

	dummyInputs := make(map[string]any, len(inputVariables))
	for _, v := range inputVariables {
		dummyInputs[v] = "foo"
	}

	_, err := RenderTemplate(template, templateFormat, dummyInputs)
	return err
}

// RenderTemplate renders the template with the given values.
func RenderTemplate(tmpl string, tmplFormat TemplateFormat, values map[string]any) (string, error) {
	formatter, ok := defaultFormatterMapping[tmplFormat]
	if !ok {
		return "", newInvalidTemplateError(tmplFormat)
	}
	return formatter(tmpl, values)
}
