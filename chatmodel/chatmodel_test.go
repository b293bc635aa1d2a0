package chatmodel

import (
	goerr "errors"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrFailedUnmarshalInput(t *testing.T) {
	err := ErrFailedUnmarshalInput
	assert.True(t, goerr.Is(err, ErrFailedUnmarshalInput))
	assert.True(t, goerr.Is(errors.WithStack(err), ErrFailedUnmarshalInput))
	assert.True(t, goerr.Is(errors.Wrap(err, "test"), ErrFailedUnmarshalInput))
	assert.True(t, goerr.Is(errors.WithMessage(err, "test"), ErrFailedUnmarshalInput))
	assert.False(t, goerr.Is(err, ErrInvalidChatContext))
	assert.False(t, goerr.Is(err, ErrFailedUnmarshalOutput))
}

type stringer struct{}

func (stringer) String() string { return "stringer" }

type provider struct{}

func (provider) GetContent() string { return "content" }

func TestStringify(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "stringer", Stringify(stringer{}))
	assert.Equal(t, "content", Stringify(provider{}))
	assert.Equal(t, `{"a":1}`, Stringify(map[string]int{"a": 1}))
}

func TestString(t *testing.T) {
	t.Parallel()
	s := NewString("hello")
	assert.Equal(t, "hello", s.GetContent())
	assert.Equal(t, "hello", s.String())

	var s2 String
	require.NoError(t, s2.Unmarshal([]byte(` "quoted" `)))
	assert.Equal(t, "quoted", s2.String())
}
