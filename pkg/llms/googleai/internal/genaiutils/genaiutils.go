package genaiutils

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/pkg/llms"
	"github.com/effective-security/shopagent/pkg/schema"
	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

// ConvertTools converts llms tools to a genai tool,
// all functions are declared in a single tool.
func ConvertTools(tools []llms.Tool) ([]*genai.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for i, tool := range tools {
		if tool.Type != "function" || tool.Function == nil {
			return nil, errors.Newf("tool [%d]: unsupported type %q, want 'function'", i, tool.Type)
		}

		decl := &genai.FunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
		}
		if tool.Function.Parameters != nil {
			decl.Parameters = ConvertJSONSchemaDefinition(tool.Function.Parameters)
		}
		decls = append(decls, decl)
	}

	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// ConvertResponseFormatJSONSchema converts a json_schema response format to a genai.Schema.
func ConvertResponseFormatJSONSchema(jschema *schema.ResponseFormatJSONSchema) *genai.Schema {
	if jschema == nil {
		return nil
	}
	return convertProperty(jschema.Schema)
}

func convertProperty(p *schema.ResponseFormatJSONSchemaProperty) *genai.Schema {
	if p == nil {
		return nil
	}

	out := &genai.Schema{
		Type:        ConvertJSONSchemaType(p.Type),
		Description: p.Description,
		Required:    p.Required,
		Enum:        toStrings(p.Enum),
	}

	if len(p.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(p.Properties))
		for k, v := range p.Properties {
			out.Properties[k] = convertProperty(v)
		}
	}

	if p.Items != nil {
		out.Items = convertProperty(p.Items)
	}

	return out
}

// ConvertJSONSchemaDefinition converts a jsonschema.Schema to a genai.Schema.
func ConvertJSONSchemaDefinition(jschema *jsonschema.Schema) *genai.Schema {
	if jschema == nil {
		return nil
	}

	res := &genai.Schema{
		Type:        ConvertJSONSchemaType(jschema.Type),
		Description: jschema.Description,
		Required:    jschema.Required,
		Enum:        toStrings(jschema.Enum),
	}

	if jschema.Properties != nil {
		res.Properties = make(map[string]*genai.Schema)
		for pair := jschema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			res.Properties[pair.Key] = ConvertJSONSchemaDefinition(pair.Value)
			res.PropertyOrdering = append(res.PropertyOrdering, pair.Key)
		}
	}

	if jschema.Items != nil {
		res.Items = ConvertJSONSchemaDefinition(jschema.Items)
	}

	return res
}

func toStrings(vals []any) []string {
	if len(vals) == 0 {
		return nil
	}
	res := make([]string, 0, len(vals))
	for _, v := range vals {
		res = append(res, fmt.Sprint(v))
	}
	return res
}

// ConvertJSONSchemaType converts a JSON schema type to a genai.Type.
func ConvertJSONSchemaType(dt string) genai.Type {
	switch dt {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

func Float32Ptr(f float32) *float32 {
	if f == 0 {
		return nil
	}
	return &f
}

func Int32Ptr(i int32) *int32 {
	if i == 0 {
		return nil
	}
	return &i
}
