package tools

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/pkg/llmutils"
	"github.com/effective-security/shopagent/pkg/schema"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

// RunFunc is the typed implementation of a tool
type RunFunc[I any, O any] func(ctx context.Context, req *I) (*O, error)

// Function is a Tool backed by a typed function,
// the parameters schema is reflected from I.
type Function[I any, O any] struct {
	name        string
	description string
	params      *jsonschema.Schema
	run         RunFunc[I, O]
	readOnly    bool
}

var _ Tool[struct{}, Result] = (*Function[struct{}, Result])(nil)

// NewFunction returns a tool for the typed function
func NewFunction[I any, O any](name, description string, run RunFunc[I, O]) (*Function[I, O], error) {
	if name == "" {
		return nil, errors.New("tool name is required")
	}
	if run == nil {
		return nil, errors.Newf("tool %s: function is required", name)
	}
	var req I
	sc, err := schema.New(reflect.TypeOf(req))
	if err != nil {
		return nil, errors.WithMessagef(err, "tool %s: failed to create schema", name)
	}
	return &Function[I, O]{
		name:        name,
		description: description,
		params:      sc.Parameters,
		run:         run,
	}, nil
}

// MustFunction returns a tool for the typed function, or panics.
// It is used for the statically defined tools.
func MustFunction[I any, O any](name, description string, run RunFunc[I, O]) *Function[I, O] {
	f, err := NewFunction(name, description, run)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Function[I, O]) Name() string {
	return f.name
}

func (f *Function[I, O]) Description() string {
	return f.description
}

func (f *Function[I, O]) Parameters() *jsonschema.Schema {
	return f.params
}

// WithReadOnly marks the tool as not changing any state
func (f *Function[I, O]) WithReadOnly() *Function[I, O] {
	f.readOnly = true
	return f
}

func (f *Function[I, O]) ReadOnly() bool {
	return f.readOnly
}

// Run executes the typed function.
// A panic in the function is reported as an error.
func (f *Function[I, O]) Run(ctx context.Context, req *I) (res *O, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"tool", f.name,
				"status", "panic",
				"reason", r,
			)
			res = nil
			err = errors.Newf("tool %s: panic: %v", f.name, r)
		}
	}()
	return f.run(ctx, req)
}

var errInvalidJSON = errors.New("input is not a complete JSON value")

// Call decodes the JSON input, runs the function and returns the JSON output
func (f *Function[I, O]) Call(ctx context.Context, input string) (string, error) {
	var req I
	in := strings.TrimSpace(input)
	if in == "" || in == "null" {
		in = "{}"
	}
	data := llmutils.CleanJSON([]byte(in))
	err := errInvalidJSON
	if json.Valid(data) {
		err = ljson.Unmarshal(data, &req)
	}
	if err != nil {
		logger.ContextKV(ctx, xlog.DEBUG,
			"tool", f.name,
			"status", "invalid_input",
			"input", slices.StringUpto(input, 128),
			"err", err.Error(),
		)
		return "", errors.Mark(errors.Wrapf(err, "tool %s", f.name), chatmodel.ErrFailedUnmarshalInput)
	}

	res, err := f.Run(ctx, &req)
	if err != nil {
		return "", err
	}

	if r, ok := any(res).(Resulter); ok && res != nil {
		logger.ContextKV(ctx, xlog.DEBUG,
			"tool", f.name,
			"status", r.GetResult().Status,
		)
	}
	return llmutils.ToJSON(res), nil
}
