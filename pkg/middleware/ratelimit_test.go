package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func sessionRequest(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/session/cart", nil)
	req.Header.Set(SessionHeader, id)
	return req
}

func TestRateLimit_PerSession(t *testing.T) {
	h := SessionID(RateLimit(RateLimitConfig{RPS: 0.001, Burst: 2}, logger.NewWithWriter("test", "error", io.Discard))(okHandler()))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, sessionRequest("session-aaaa"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, sessionRequest("session-aaaa"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var body httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)

	// Another shopper has its own bucket.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, sessionRequest("session-bbbb"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	h := RateLimit(RateLimitConfig{}, logger.NewWithWriter("test", "error", io.Discard))(okHandler())

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestLimiterStore_SweepsIdleBuckets(t *testing.T) {
	store := newLimiterStore(RateLimitConfig{RPS: 1, Burst: 1, IdleTTL: time.Minute})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	assert.True(t, store.allow("a"))
	assert.True(t, store.allow("b"))
	assert.Equal(t, 2, store.len())

	now = now.Add(2 * time.Minute)
	assert.True(t, store.allow("c"))
	assert.Equal(t, 1, store.len())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:4000", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:4000", "198.51.100.4"},
		{"garbage header", map[string]string{"X-Forwarded-For": "not-an-ip"}, "192.0.2.1:1234", "192.0.2.1"},
		{"remote addr without port", nil, "192.0.2.9", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
