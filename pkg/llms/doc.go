// Package llms provides the provider-neutral types for chat models:
// messages with typed parts, tool definitions, call options and responses.
//
// Each subpackage adapts one provider SDK to the Model interface.
package llms
