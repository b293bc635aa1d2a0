package encoding

import (
	"reflect"
	"slices"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/effective-security/shopagent/pkg/schema"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// typeSchema holds the reply type and its reflected schema,
// it is shared by the structured encoders.
type typeSchema struct {
	reqType reflect.Type
	schema  *schema.Schema
}

func newTypeSchema(req any) (typeSchema, error) {
	s, err := schema.New(reflect.TypeOf(req))
	if err != nil {
		return typeSchema{}, err
	}
	t := reflect.TypeOf(req)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return typeSchema{reqType: t, schema: s}, nil
}

// Validate checks the `validate` tags of the decoded value
func (s typeSchema) Validate(v any) error {
	return validate.Struct(v)
}

// sample returns a value of the reply type filled with fake data
func (s typeSchema) sample() any {
	v := reflect.New(s.reqType)
	if f, ok := v.Elem().Interface().(schema.Faker); ok {
		return f.Fake()
	}
	_ = gofakeit.Struct(v.Interface())
	return v.Interface()
}

// field is a property of the reply schema
type field struct {
	Path        string
	Type        string
	Description string
	Required    bool
}

// fields returns the properties in declaration order,
// nested properties have dotted paths.
func (s typeSchema) fields() []field {
	var res []field
	collectFields(&res, "", s.schema.Parameters)
	return res
}

func collectFields(res *[]field, prefix string, js *jsonschema.Schema) {
	if js == nil || js.Properties == nil {
		return
	}
	for pair := js.Properties.Oldest(); pair != nil; pair = pair.Next() {
		path := pair.Key
		if prefix != "" {
			path = prefix + "." + pair.Key
		}
		prop := pair.Value
		typ := prop.Type
		if typ == "array" && prop.Items != nil && prop.Items.Type != "" {
			typ = "list of " + prop.Items.Type
		}
		*res = append(*res, field{
			Path:        path,
			Type:        typ,
			Description: prop.Description,
			Required:    slices.Contains(js.Required, pair.Key),
		})
		collectFields(res, path, prop)
		collectFields(res, path+"[]", prop.Items)
	}
}
