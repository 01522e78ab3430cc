package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDomainErrorCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"invalid vote value", ErrInvalidVoteValue(2), CodeInvalidVoteValue, http.StatusBadRequest},
		{"invalid target kind", ErrInvalidTargetKind("author"), CodeInvalidTargetKind, http.StatusBadRequest},
		{"target not found", ErrTargetNotFound("paper", "p1"), CodeTargetNotFound, http.StatusNotFound},
		{"node not found", ErrNodeNotFound("p1"), CodeNodeNotFound, http.StatusNotFound},
		{"duplicate citation", ErrDuplicateCitation("a", "b"), CodeDuplicateCitation, http.StatusConflict},
		{"invalid depth", ErrInvalidDepth(9, 5), CodeInvalidDepth, http.StatusBadRequest},
		{"storage unavailable", ErrStorageUnavailable("apply vote", fmt.Errorf("timeout")), CodeStorageUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)

			wrapped := fmt.Errorf("handler: %w", tt.err)
			assert.True(t, HasCode(wrapped, tt.code))
			assert.Equal(t, tt.code, CodeOf(wrapped))
		})
	}
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, "", CodeOf(stderrors.New("boom")))
	assert.False(t, HasCode(nil, CodeNodeNotFound))
}

func TestStorageUnavailable_UnwrapsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := ErrStorageUnavailable("tally", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), CodeStorageUnavailable)
}

func TestErrorHandler_Handle(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)

	t.Run("app error keeps code and status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/graph/x", nil)

		h.Handle(rec, req, ErrNodeNotFound("x"))

		require.Equal(t, http.StatusNotFound, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Error)
		assert.Equal(t, CodeNodeNotFound, body.Code)
		assert.Equal(t, string(ErrorTypeNotFound), body.Type)
	})

	t.Run("plain error hides message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		h.Handle(rec, req, stderrors.New("secret detail"))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret detail")
	})
}

func TestErrorHandler_MiddlewareRecoversPanic(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
