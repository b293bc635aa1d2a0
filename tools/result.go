package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Status is the outcome of a tool call, reported to the model in-band.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusNotFound Status = "not_found"
	StatusEmpty    Status = "empty"
)

// statusAliases maps the accepted spellings to the canonical status
var statusAliases = map[string]Status{
	"success":   StatusSuccess,
	"ok":        StatusSuccess,
	"error":     StatusError,
	"not_found": StatusNotFound,
	"notfound":  StatusNotFound,
	"empty":     StatusEmpty,
}

// ParseStatus returns the canonical status, `ok` is accepted for `success`.
func ParseStatus(s string) (Status, bool) {
	st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

func (s Status) String() string {
	return string(s)
}

// UnmarshalJSON accepts the aliases of the status
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.WithStack(err)
	}
	st, ok := ParseStatus(str)
	if !ok {
		return errors.Newf("unknown status %q", str)
	}
	*s = st
	return nil
}

// Result is embedded in every tool output
type Result struct {
	Status  Status `json:"status" yaml:"status" jsonschema:"enum=success,enum=error,enum=not_found,enum=empty,description=Outcome of the call."`
	Message string `json:"message,omitempty" yaml:"message,omitempty" jsonschema:"description=Human readable explanation of the outcome."`
}

// Resulter is implemented by the outputs that embed Result
type Resulter interface {
	GetResult() *Result
}

// GetResult returns the result envelope
func (r *Result) GetResult() *Result {
	return r
}

// IsSuccess returns true for the success status
func (r Result) IsSuccess() bool {
	return r.Status == StatusSuccess
}

// Success returns a success result
func Success(message string) Result {
	return Result{Status: StatusSuccess, Message: message}
}

// Successf returns a success result with formatted message
func Successf(format string, args ...any) Result {
	return Result{Status: StatusSuccess, Message: fmt.Sprintf(format, args...)}
}

// Errorf returns an error result with formatted message
func Errorf(format string, args ...any) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf returns a not_found result with formatted message
func NotFoundf(format string, args ...any) Result {
	return Result{Status: StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

// Empty returns an empty result
func Empty(message string) Result {
	return Result{Status: StatusEmpty, Message: message}
}
