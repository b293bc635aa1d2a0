package tools_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/shopagent/mocks/mocktools"
	"github.com/effective-security/shopagent/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type echoRequest struct {
	Text  string `json:"text" jsonschema:"description=Text to echo"`
	Times int    `json:"times,omitempty" jsonschema:"description=Number of repeats"`
}

type echoResponse struct {
	tools.Result
	Echo []string `json:"echo,omitempty"`
}

func newEcho(t *testing.T) *tools.Function[echoRequest, echoResponse] {
	f, err := tools.NewFunction("echo", "Echoes the text",
		func(_ context.Context, req *echoRequest) (*echoResponse, error) {
			if req.Text == "" {
				return &echoResponse{Result: tools.Errorf("text is required")}, nil
			}
			if req.Times < 0 {
				panic("negative")
			}
			res := &echoResponse{Result: tools.Success("echoed")}
			for i := 0; i < max(req.Times, 1); i++ {
				res.Echo = append(res.Echo, req.Text)
			}
			return res, nil
		})
	require.NoError(t, err)
	return f
}

func TestFunction(t *testing.T) {
	ctx := context.Background()
	echo := newEcho(t)

	assert.Equal(t, "echo", echo.Name())
	assert.Equal(t, "Echoes the text", echo.Description())
	require.NotNil(t, echo.Parameters())
	assert.Equal(t, "object", echo.Parameters().Type)
	_, ok := echo.Parameters().Properties.Get("text")
	assert.True(t, ok)

	out, err := echo.Call(ctx, `{"text":"hi","times":2}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","message":"echoed","echo":["hi","hi"]}`, out)

	// precondition failure is in-band
	out, err = echo.Call(ctx, `{}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","message":"text is required"}`, out)

	out, err = echo.Call(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, out, `"error"`)

	// model chatter around the JSON is ignored
	out, err = echo.Call(ctx, "Sure: {\"text\":\"x\"} done")
	require.NoError(t, err)
	assert.Contains(t, out, `"success"`)

	for _, truncated := range []string{`{"text":`, `{"text":"x"`, `{"text":"x","times":[1,`, "Sure: {\"text\": done"} {
		_, err = echo.Call(ctx, truncated)
		require.Error(t, err, truncated)
		assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalInput), truncated)
		assert.Contains(t, err.Error(), "tool echo", truncated)
	}

	out, err = echo.Call(ctx, "```json\n{\"text\":\"fenced\"}\n```")
	require.NoError(t, err)
	assert.Contains(t, out, `"fenced"`)

	_, err = echo.Call(ctx, `{"text":"x","times":-1}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestNewFunction_Errors(t *testing.T) {
	_, err := tools.NewFunction[echoRequest, echoResponse]("", "desc", nil)
	assert.EqualError(t, err, "tool name is required")

	_, err = tools.NewFunction[echoRequest, echoResponse]("x", "desc", nil)
	assert.EqualError(t, err, "tool x: function is required")

	_, err = tools.NewFunction("x", "desc", func(context.Context, *string) (*tools.Result, error) { return nil, nil })
	assert.Error(t, err)

	assert.Panics(t, func() {
		tools.MustFunction[echoRequest, echoResponse]("", "", nil)
	})
}

func TestStatus(t *testing.T) {
	tcases := []struct {
		in  string
		exp tools.Status
		ok  bool
	}{
		{"success", tools.StatusSuccess, true},
		{"OK", tools.StatusSuccess, true},
		{" ok ", tools.StatusSuccess, true},
		{"error", tools.StatusError, true},
		{"not_found", tools.StatusNotFound, true},
		{"empty", tools.StatusEmpty, true},
		{"pending", "", false},
	}
	for _, tc := range tcases {
		st, ok := tools.ParseStatus(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.exp, st, tc.in)
	}

	var r tools.Result
	require.NoError(t, json.Unmarshal([]byte(`{"status":"ok","message":"done"}`), &r))
	assert.True(t, r.IsSuccess())
	assert.Equal(t, "done", r.Message)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"maybe"}`), &r))
	assert.Error(t, json.Unmarshal([]byte(`{"status":1}`), &r))

	assert.Equal(t, tools.StatusNotFound, tools.NotFoundf("no %s", "x").Status)
	assert.Equal(t, "no x", tools.NotFoundf("no %s", "x").Message)
	assert.Equal(t, tools.StatusEmpty, tools.Empty("none").Status)
	assert.Equal(t, "2 items", tools.Successf("%d items", 2).Message)
	assert.False(t, tools.Errorf("bad").IsSuccess())
}

func TestRegistry(t *testing.T) {
	echo := newEcho(t)
	upper := tools.MustFunction("ECHO", "duplicate",
		func(context.Context, *echoRequest) (*echoResponse, error) { return nil, nil })
	other := tools.MustFunction("other", "Other tool",
		func(context.Context, *echoRequest) (*echoResponse, error) { return nil, nil })

	r := tools.NewRegistry(echo, upper, nil, other)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"echo", "other"}, r.Names())
	assert.Equal(t, []string{"echo", "other"}, r.SortedNames())

	got, ok := r.Get("Echo")
	require.True(t, ok)
	assert.Equal(t, "Echoes the text", got.Description())
	_, ok = r.Get("missing")
	assert.False(t, ok)

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "echo", defs[0].Function.Name)
	assert.NotNil(t, defs[0].Function.Parameters)

	list := r.List()
	list[0] = nil
	assert.NotNil(t, r.List()[0])

	desc := tools.GetDescriptions(r.List()...)
	assert.Contains(t, desc, "```json")
	assert.Contains(t, desc, `"Name": "other"`)
}

func TestReadOnly(t *testing.T) {
	echo := newEcho(t)
	assert.False(t, echo.ReadOnly())
	assert.False(t, tools.IsReadOnly(echo))

	echo.WithReadOnly()
	assert.True(t, echo.ReadOnly())
	assert.True(t, tools.IsReadOnly(echo))

	ctrl := gomock.NewController(t)
	assert.False(t, tools.IsReadOnly(mocktools.NewMockITool(ctrl)))
}
