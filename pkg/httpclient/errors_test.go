package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func fakeResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestParseResponseError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{"not found", http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"missing"}}`, apperrors.ErrNotFound},
		{"bad request", http.StatusBadRequest, `{"error":{"code":"INVALID_INPUT","message":"bad"}}`, apperrors.ErrInvalidInput},
		{"already exists", http.StatusConflict, `{"error":{"code":"ALREADY_EXISTS","message":"dup"}}`, apperrors.ErrAlreadyExists},
		{"conflict", http.StatusConflict, `{"error":{"code":"CONFLICT","message":"busy"}}`, apperrors.ErrConflict},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":"UNAUTHORIZED","message":"no"}}`, apperrors.ErrUnauthorized},
		{"schema missing", http.StatusNotFound, `{"error":{"code":"SCHEMA_MISSING","message":"no table"}}`, apperrors.ErrSchemaMissing},
		{"unavailable", http.StatusServiceUnavailable, `{"error":{"code":"SERVICE_UNAVAILABLE","message":"down"}}`, apperrors.ErrServiceUnavail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseResponseError(fakeResponse(tt.status, tt.body), "user-service")
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

func TestParseResponseError_NonJSONBody(t *testing.T) {
	err := ParseResponseError(fakeResponse(http.StatusTeapot, "short and stout"), "user-service")
	assert.EqualError(t, err, "user-service returned status 418: short and stout")
}

func TestParseResponseError_BareStatus(t *testing.T) {
	err := ParseResponseError(fakeResponse(http.StatusNotFound, "404 page not found\n"), "user-service")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "got %v", err)

	err = ParseResponseError(fakeResponse(http.StatusServiceUnavailable, "upstream connect error"), "user-service")
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail), "got %v", err)
}
