package poolerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeHook, "nothing to wrap"))
}

func TestErrorMessage(t *testing.T) {
	err := New(ErrorTypeValidation, "count must be positive")
	assert.Equal(t, "validation: count must be positive", err.Error())

	wrapped := Wrap(errors.New("boom"), ErrorTypeHost, "instantiate failed")
	assert.Equal(t, "host: instantiate failed: boom", wrapped.Error())
}

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeHook, "acquire hook failed")
	outer := Wrap(inner, ErrorTypeHost, "spawn failed")

	require.NotEmpty(t, inner.Stack)
	assert.Equal(t, inner.Stack, outer.Stack)
}

func TestIsTypeWalksChain(t *testing.T) {
	root := errors.New("gpu lost")
	hookErr := Wrap(root, ErrorTypeHook, "create hook failed")
	hostErr := Wrap(hookErr, ErrorTypeHost, "instantiate failed")
	plain := fmt.Errorf("frame 12: %w", hostErr)

	assert.True(t, IsType(plain, ErrorTypeHost))
	assert.True(t, IsType(plain, ErrorTypeHook))
	assert.False(t, IsType(plain, ErrorTypeDisposed))
	assert.True(t, errors.Is(plain, root))
	assert.False(t, IsType(root, ErrorTypeHook))
	assert.False(t, IsType(nil, ErrorTypeHook))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeDoubleRelease, "item already free").
		WithDetail("pool", "sparks").
		WithDetail("index", 3)

	assert.Equal(t, "sparks", err.Details["pool"])
	assert.Equal(t, 3, err.Details["index"])
}
