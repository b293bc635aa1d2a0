package genaiutils

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/pkg/schema"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"google.golang.org/genai"
)

func TestConvertJSONSchemaDefinition(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ConvertJSONSchemaDefinition(nil))

	def := &jsonschema.Schema{
		Type:        "object",
		Description: "Add to cart",
		Properties: orderedmap.New[string, *jsonschema.Schema](
			orderedmap.WithInitialData(
				orderedmap.Pair[string, *jsonschema.Schema]{
					Key:   "product",
					Value: &jsonschema.Schema{Type: "string", Description: "Product name"},
				},
				orderedmap.Pair[string, *jsonschema.Schema]{
					Key:   "quantity",
					Value: &jsonschema.Schema{Type: "integer"},
				},
				orderedmap.Pair[string, *jsonschema.Schema]{
					Key: "tags",
					Value: &jsonschema.Schema{
						Type:  "array",
						Items: &jsonschema.Schema{Type: "string", Enum: []any{"a", "b"}},
					},
				},
			),
		),
		Required: []string{"product"},
	}

	result := ConvertJSONSchemaDefinition(def)
	assert.Equal(t, genai.TypeObject, result.Type)
	assert.Equal(t, "Add to cart", result.Description)
	assert.Equal(t, []string{"product"}, result.Required)
	assert.Equal(t, []string{"product", "quantity", "tags"}, result.PropertyOrdering)
	require.Len(t, result.Properties, 3)
	assert.Equal(t, genai.TypeString, result.Properties["product"].Type)
	assert.Equal(t, "Product name", result.Properties["product"].Description)
	assert.Equal(t, genai.TypeInteger, result.Properties["quantity"].Type)
	tags := result.Properties["tags"]
	assert.Equal(t, genai.TypeArray, tags.Type)
	require.NotNil(t, tags.Items)
	assert.Equal(t, []string{"a", "b"}, tags.Items.Enum)
}

func TestConvertJSONSchemaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected genai.Type
	}{
		{"object", genai.TypeObject},
		{"string", genai.TypeString},
		{"number", genai.TypeNumber},
		{"integer", genai.TypeInteger},
		{"boolean", genai.TypeBoolean},
		{"array", genai.TypeArray},
		{"null", genai.TypeUnspecified},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ConvertJSONSchemaType(tt.input), tt.input)
	}
}

func TestConvertTools(t *testing.T) {
	t.Parallel()

	var sc jsonschema.Schema
	err := json.Unmarshal([]byte(`{
		"type": "object",
		"properties": {
			"code": {"type": "string", "description": "Discount code"}
		},
		"required": ["code"]
	}`), &sc)
	require.NoError(t, err)

	res, err := ConvertTools(nil)
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = ConvertTools([]llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "apply_discount",
				Description: "Apply a discount code",
				Parameters:  &sc,
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "view_cart",
				Description: "Show the cart",
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Len(t, res[0].FunctionDeclarations, 2)

	decl := res[0].FunctionDeclarations[0]
	assert.Equal(t, "apply_discount", decl.Name)
	require.NotNil(t, decl.Parameters)
	assert.Equal(t, []string{"code"}, decl.Parameters.Required)
	assert.Equal(t, genai.TypeString, decl.Parameters.Properties["code"].Type)
	assert.Nil(t, res[0].FunctionDeclarations[1].Parameters)

	_, err = ConvertTools([]llms.Tool{{Type: "retrieval"}})
	assert.EqualError(t, err, `tool [0]: unsupported type "retrieval", want 'function'`)
}

func TestConvertResponseFormat(t *testing.T) {
	t.Parallel()

	type reply struct {
		Reply    string   `json:"reply" jsonschema:"description=Answer"`
		Products []string `json:"products,omitempty"`
	}

	rf, err := schema.NewResponseFormat(reflect.TypeFor[reply](), true)
	require.NoError(t, err)

	s := ConvertResponseFormatJSONSchema(rf.JSONSchema)
	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"reply"}, s.Required)
	assert.Equal(t, genai.TypeArray, s.Properties["products"].Type)
	assert.Equal(t, genai.TypeString, s.Properties["products"].Items.Type)

	assert.Nil(t, ConvertResponseFormatJSONSchema(nil))
}

func TestPtrs(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Float32Ptr(0))
	assert.Equal(t, float32(0.5), *Float32Ptr(0.5))
	assert.Nil(t, Int32Ptr(0))
	assert.Equal(t, int32(7), *Int32Ptr(7))
}
