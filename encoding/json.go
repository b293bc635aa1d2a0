package encoding

import (
	"encoding/json"
	"strings"

	"github.com/bububa/ljson"
	"github.com/effective-security/shopagent/pkg/llmutils"
)

// JSONEncoder describes the reply type with its JSON schema,
// and decodes the lenient JSON of the model.
type JSONEncoder struct {
	typeSchema
}

// NewJSONEncoder returns the encoder for the type of req
func NewJSONEncoder(req any) (*JSONEncoder, error) {
	ts, err := newTypeSchema(req)
	if err != nil {
		return nil, err
	}
	return &JSONEncoder{typeSchema: ts}, nil
}

func (e *JSONEncoder) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal accepts fenced JSON, comments and trailing commas
func (e *JSONEncoder) Unmarshal(bs []byte, ret any) error {
	return ljson.Unmarshal(llmutils.CleanJSON(bs), ret)
}

func (e *JSONEncoder) GetFormatInstructions() string {
	var b strings.Builder
	b.WriteString("\nReply with a single JSON object that matches this JSON schema:\n")
	b.WriteString("```json\n")
	b.WriteString(e.schema.String())
	b.WriteString("\n```\n")
	b.WriteString("Return the object itself, not the schema, and keep the field names of the schema.\n")
	return b.String()
}
