package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteData_WrapsEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusOK, map[string]int{"count": 2})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"count":2}}`, rec.Body.String())
}

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"app error", apperrors.InvalidInput("quantity must be positive"), http.StatusBadRequest, "INVALID_INPUT"},
		{"wrapped not found", fmt.Errorf("get: %w", apperrors.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"schema missing", fmt.Errorf("fetch: %w", apperrors.ErrSchemaMissing), http.StatusNotFound, "SCHEMA_MISSING"},
		{"conflict", apperrors.ErrConflict, http.StatusConflict, "CONFLICT"},
		{"unauthorized", apperrors.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unavailable", fmt.Errorf("remote: %w", apperrors.ErrServiceUnavail), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/session/cart", nil)
			WriteError(rec, req, tt.err, testLogger())

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decode(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestWriteError_InternalHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteError(rec, req, apperrors.Internal(fmt.Errorf("redis: connection refused")), testLogger())

	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "an internal error occurred", resp.Error.Message)
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.WithCorrelationID(context.Background(), "req-42"))
	WriteError(rec, req, apperrors.ErrNotFound, testLogger())

	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "req-42", resp.Error.RequestID)
}

func TestWriteError_ValidationFields(t *testing.T) {
	type body struct {
		Delta int `json:"delta" validate:"ne=0"`
	}
	verr := validator.Validate(body{})
	require.Error(t, verr)

	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodPatch, "/", nil), verr, testLogger())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "Delta")
}
