package encoding

import (
	"strings"

	"github.com/effective-security/shopagent/pkg/llmutils"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// YAMLEncoder describes the reply type with a YAML example
// annotated with the field descriptions.
type YAMLEncoder struct {
	typeSchema
}

// NewYAMLEncoder returns the encoder for the type of req
func NewYAMLEncoder(req any) (*YAMLEncoder, error) {
	ts, err := newTypeSchema(req)
	if err != nil {
		return nil, err
	}
	return &YAMLEncoder{typeSchema: ts}, nil
}

func (e *YAMLEncoder) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (e *YAMLEncoder) Unmarshal(bs []byte, ret any) error {
	return yaml.Unmarshal(llmutils.BytesTrimBackticks(bs), ret)
}

// Example returns the fake reply as YAML with the descriptions as comments
func (e *YAMLEncoder) Example() ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(e.sample()); err != nil {
		return nil, err
	}
	annotate(&node, e.schema.Parameters)
	return yaml.Marshal(&node)
}

func (e *YAMLEncoder) GetFormatInstructions() string {
	example, err := e.Example()
	if err != nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nReply with a single YAML document like this example, the comments describe the fields:\n")
	b.WriteString("```yaml\n")
	b.Write(example)
	b.WriteString("```\n")
	b.WriteString("Return your own values in the same structure, comments are not needed.\n")
	return b.String()
}

// annotate sets the property descriptions as comments of the mapping keys.
// Only the first item of a list is annotated.
func annotate(node *yaml.Node, js *jsonschema.Schema) {
	if node == nil || js == nil {
		return
	}
	switch node.Kind {
	case yaml.DocumentNode:
		for _, n := range node.Content {
			annotate(n, js)
		}
	case yaml.MappingNode:
		if js.Properties == nil {
			return
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			prop, ok := js.Properties.Get(key.Value)
			if !ok {
				continue
			}
			if prop.Description != "" {
				key.HeadComment = prop.Description
			}
			annotate(val, prop)
		}
	case yaml.SequenceNode:
		if len(node.Content) > 0 {
			annotate(node.Content[0], js.Items)
		}
	}
}
