package wireerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeTableIsStable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  *Error
		code int
		http int
	}{
		{NewParseError(nil), -32700, 400},
		{NewInvalidRequest("bad"), -32600, 400},
		{NewMethodNotFound("widget.get"), -32601, 404},
		{NewInvalidParams(nil), -32602, 400},
		{NewInternal(nil), -32603, 500},
		{NewAuthenticationRequired(), -32001, 401},
		{NewInsufficientPermissions(), -32002, 403},
		{NewTokenExpired(), -32003, 401},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code())
		assert.Equal(t, tc.http, tc.err.HTTPStatus())
	}
}

func TestMessageNeverEmbedsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("pq: connection refused at 10.0.0.5:5432")
	err := NewInternal(cause)

	assert.Equal(t, "Internal error", err.Message)
	assert.NotContains(t, err.Message, "10.0.0.5")
}

func TestUnwrapExposesCauseForLogging(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := NewInvalidParams(cause)

	assert.ErrorIs(t, err, cause)
}

func TestAsFindsWrappedError(t *testing.T) {
	t.Parallel()

	inner := NewTokenExpired()
	wrapped := fmt.Errorf("dispatch failed: %w", inner)

	got, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, TypeTokenExpired, got.Type)
}

func TestAsMissesUnrelatedError(t *testing.T) {
	t.Parallel()

	_, ok := As(errors.New("unrelated"))
	assert.False(t, ok)
}
