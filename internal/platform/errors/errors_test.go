package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MessageFormatting(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := ExternalError("scoring engine unreachable", cause)

	assert.Equal(t, "external: scoring engine unreachable: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{ValidationError("bad topic"), http.StatusBadRequest},
		{NotFoundError("no such alert"), http.StatusNotFound},
		{InternalError("boom", nil), http.StatusInternalServerError},
		{ExternalError("engine down", nil), http.StatusBadGateway},
		{&Error{Type: "mystery"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.HTTPStatus())
	}
}

func TestWithContext_Chainable(t *testing.T) {
	err := ValidationError("unknown topic").
		WithContext("topic", "nonsense").
		WithContext("connection_id", "abc")

	assert.Equal(t, "nonsense", err.Context["topic"])
	assert.Equal(t, "abc", err.Context["connection_id"])
}

func TestAsStructuredError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})

	t.Run("structured error passes through", func(t *testing.T) {
		orig := NotFoundError("gone")
		got := AsStructuredError(orig)
		require.Same(t, orig, got)
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		got := AsStructuredError(stderrors.New("plain"))
		assert.Equal(t, TypeInternal, got.Type)
		assert.Equal(t, http.StatusInternalServerError, got.HTTPStatus())
	})
}

func TestToResponse(t *testing.T) {
	err := ValidationError("unknown topic").WithContext("topic", "bogus")
	resp := err.ToResponse()

	assert.Equal(t, "unknown topic", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, "bogus", resp.Context["topic"])
}
