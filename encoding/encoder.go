package encoding

import (
	"github.com/cockroachdb/errors"
)

// SchemaEncoder encodes and decodes the model output of a given type
type SchemaEncoder interface {
	Marshal(req any) ([]byte, error)
	Unmarshal([]byte, any) error
	// GetFormatInstructions returns the wrapped message with message schema for the prompt
	GetFormatInstructions() string
}

// Validator validates the decoded value
type Validator interface {
	Validate(any) error
}

type Mode = string

const (
	ModeJSON       Mode = "json"
	ModeJSONSchema Mode = "json_schema"
	ModeYAML       Mode = "yaml"
	ModeTOML       Mode = "toml"
	ModePlainText  Mode = "plain_text"
)

// ModeDefault is the default mode for the encoder.
var ModeDefault = ModeJSONSchema

// IsStructured returns true if the mode produces a typed value
func IsStructured(mode Mode) bool {
	return mode != ModePlainText && mode != ""
}

// PredefinedSchemaEncoder returns the encoder for the mode.
// The plain text mode has no encoder, use TextOutputParser.
func PredefinedSchemaEncoder(mode Mode, req any) (SchemaEncoder, error) {
	switch mode {
	case ModeJSON, ModeJSONSchema:
		return NewJSONEncoder(req)
	case ModeYAML:
		return NewYAMLEncoder(req)
	case ModeTOML:
		return NewTOMLEncoder(req)
	default:
		return nil, errors.Newf("no predefined encoder for mode %q", mode)
	}
}

var (
	_ SchemaEncoder = (*JSONEncoder)(nil)
	_ SchemaEncoder = (*YAMLEncoder)(nil)
	_ SchemaEncoder = (*TOMLEncoder)(nil)

	_ Validator = (*JSONEncoder)(nil)
	_ Validator = (*YAMLEncoder)(nil)
	_ Validator = (*TOMLEncoder)(nil)
)
