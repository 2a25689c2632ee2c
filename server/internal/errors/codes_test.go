package errors

import (
	"net/http"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAPIErrorFormatting(t *testing.T) {
	err := InvalidArgument("bad input")
	assert.Equal(t, "[INVALID_ARGUMENT] bad input", err.Error())

	cause := pkgerrors.New("socket closed")
	wrapped := UpstreamUnavailable(cause)
	assert.Contains(t, wrapped.Error(), "socket closed")
	assert.Equal(t, cause, wrapped.Unwrap())
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  *APIError
		want int
	}{
		{RateLimitExceeded(30), http.StatusTooManyRequests},
		{InvalidArgument("x"), http.StatusBadRequest},
		{SessionNotFound(), http.StatusNotFound},
		{SessionExists(), http.StatusConflict},
		{VoiceNotConfigured(), http.StatusServiceUnavailable},
		{UpstreamUnavailable(nil), http.StatusServiceUnavailable},
		{ChatUnavailable(nil), http.StatusServiceUnavailable},
		{Internal("x", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.HTTPStatus(), string(tt.err.Code))
	}
}

func TestRateLimitExceededCarriesRetryAfter(t *testing.T) {
	err := RateLimitExceeded(42)
	assert.Equal(t, 42, err.RetryAfter)
	assert.Contains(t, err.Message, "42 seconds")
}

func TestIsCode(t *testing.T) {
	assert.True(t, IsCode(SessionNotFound(), ErrCodeSessionNotFound))
	assert.False(t, IsCode(SessionNotFound(), ErrCodeInternal))
	assert.False(t, IsCode(pkgerrors.New("plain"), ErrCodeInternal))
	assert.False(t, IsCode(nil, ErrCodeInternal))
}
