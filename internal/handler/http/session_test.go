package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository/memory"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

// ============================================================================
// Test helpers
// ============================================================================

const testSession = "browser-0001"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testServer struct {
	handler  http.Handler
	jwt      *auth.JWTManager
	store    *memory.WishlistStore
	registry *service.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := testLogger()
	reg := prometheus.NewRegistry()

	metrics, err := service.NewMetrics(reg)
	require.NoError(t, err)
	httpMetrics, err := middleware.NewHTTPMetrics(reg)
	require.NoError(t, err)

	store := memory.NewWishlistStore()
	registry := service.NewRegistry(memory.NewLocalCache(), service.Dependencies{
		Wishlists: store,
		Metrics:   metrics,
		Logger:    logger,
	}, time.Hour)
	t.Cleanup(registry.Close)

	jwt := auth.NewJWTManager("test-secret", time.Hour)
	handler := NewRouter(RouterConfig{
		Registry:      registry,
		Health:        health.NewHandler(),
		Metrics:       httpMetrics,
		Gatherer:      reg,
		ValidateToken: jwt.Validate,
		CORS:          middleware.CORSConfig{AllowedOrigins: []string{"*"}},
		Logger:        logger,
	})

	return &testServer{handler: handler, jwt: jwt, store: store, registry: registry}
}

type envelope struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.SessionHeader, testSession)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && bytes.HasPrefix(bytes.TrimSpace(rec.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// ============================================================================
// Session
// ============================================================================

func TestGetSession_MintsSessionID(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get(middleware.SessionHeader), 36)
}

func TestGetSession_RejectsMalformedSessionID(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, http.MethodGet, "/api/v1/session", nil, middleware.SessionHeader, "bad id!")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_SESSION", env.Error.Code)
}

func TestGetSession_Snapshot(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/v1/session/cart/items", `{"id":1,"name":"Mug","price":"3.50"}`)

	rec, env := srv.do(t, http.MethodGet, "/api/v1/session", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeData[service.Snapshot](t, env)
	assert.Equal(t, testSession, snap.SessionID)
	assert.False(t, snap.Authenticated)
	assert.Equal(t, 1, snap.Cart.Count)
	assert.Equal(t, "3.5", snap.Cart.Total.String())
}

func TestSessions_AreIsolated(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/v1/session/cart/items", `{"id":"p1","name":"Mug","price":1}`)

	_, env := srv.do(t, http.MethodGet, "/api/v1/session/cart", nil, middleware.SessionHeader, "browser-0002")

	view := decodeData[service.CartView](t, env)
	assert.Zero(t, view.Count)
}

// ============================================================================
// Cart
// ============================================================================

func TestCart_Flow(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/session/cart/items", `{"id":42,"name":"Lamp","price":"10.00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeData[service.CartView](t, env)
	assert.True(t, view.Open)

	srv.do(t, http.MethodPost, "/api/v1/session/cart/items", `{"id":"42","name":"Lamp","price":"10.00"}`)

	rec, env = srv.do(t, http.MethodPatch, "/api/v1/session/cart/items/42", `{"delta":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeData[service.CartView](t, env)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 5, view.Lines[0].Quantity)
	assert.Equal(t, "50", view.Total.String())

	rec, env = srv.do(t, http.MethodDelete, "/api/v1/session/cart/items/42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeData[service.CartView](t, env)
	assert.Empty(t, view.Lines)
}

func TestCart_ZeroPaddedIDInPath(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/v1/session/cart/items", `{"id":"007","name":"Agent","price":"7.00"}`)

	rec, env := srv.do(t, http.MethodPatch, "/api/v1/session/cart/items/007", `{"delta":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeData[service.CartView](t, env)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, domain.ProductID("007"), view.Lines[0].Product.ID)
	assert.Equal(t, 2, view.Lines[0].Quantity)

	rec, env = srv.do(t, http.MethodDelete, "/api/v1/session/cart/items/007", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[service.CartView](t, env).Lines)

	_, env = srv.do(t, http.MethodPost, "/api/v1/session/wishlist/007/toggle", nil)
	assert.Equal(t, domain.ProductID("007"), decodeData[WishlistItemResponse](t, env).ProductID)
}

func TestCart_UpdateQuantity_HugeDeltaKeepsLine(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/v1/session/cart/items", `{"id":"a","name":"A","price":1}`)

	rec, env := srv.do(t, http.MethodPatch, "/api/v1/session/cart/items/a", `{"delta":9223372036854775807}`)

	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeData[service.CartView](t, env)
	require.Len(t, view.Lines, 1)
	assert.Positive(t, view.Lines[0].Quantity)
}

func TestCart_Clear(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/v1/session/cart/items", `{"id":"a","name":"A","price":1}`)

	rec, env := srv.do(t, http.MethodDelete, "/api/v1/session/cart", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decodeData[service.CartView](t, env).Count)
}

func TestCart_AddItem_Validation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"missing name", `{"id":"p1","price":1}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing id", `{"name":"x","price":1}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"negative price", `{"id":"p1","name":"x","price":"-1"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown field", `{"id":"p1","name":"x","price":1,"stock":3}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"malformed json", `{"id":`, http.StatusBadRequest, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := srv.do(t, http.MethodPost, "/api/v1/session/cart/items", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestCart_UpdateQuantity_ZeroDeltaRejected(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, http.MethodPatch, "/api/v1/session/cart/items/p1", `{"delta":0}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "Delta")
}

func TestCart_RejectsNonJSONContentType(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/session/cart/items", "id=1", "Content-Type", "application/x-www-form-urlencoded")

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	require.NotNil(t, env.Error)
}

// ============================================================================
// Wishlist and sign-in
// ============================================================================

func TestWishlist_GuestToggle(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/session/wishlist/7/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	item := decodeData[WishlistItemResponse](t, env)
	assert.Equal(t, domain.ProductID("7"), item.ProductID)
	assert.True(t, item.Wishlisted)

	_, env = srv.do(t, http.MethodGet, "/api/v1/session/wishlist/7", nil)
	assert.True(t, decodeData[WishlistItemResponse](t, env).Wishlisted)

	_, env = srv.do(t, http.MethodGet, "/api/v1/session/wishlist", nil)
	list := decodeData[WishlistResponse](t, env)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, []domain.ProductID{"7"}, list.Items)
}

func TestSignIn_RequiresToken(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/session/sign-in", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestSignIn_RejectsInvalidToken(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := srv.do(t, http.MethodPost, "/api/v1/session/sign-in", nil, "Authorization", "Bearer nope")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignIn_MigratesGuestWishlist(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/v1/session/wishlist/A/toggle", nil)
	srv.do(t, http.MethodPost, "/api/v1/session/wishlist/B/toggle", nil)

	token, err := srv.jwt.GenerateAccessToken("acct-1", "a@example.com")
	require.NoError(t, err)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/session/sign-in", nil, "Authorization", "Bearer "+token)

	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeData[service.Snapshot](t, env)
	assert.True(t, snap.Authenticated)
	assert.Equal(t, "acct-1", snap.AccountID)
	assert.Equal(t, []domain.ProductID{"A", "B"}, snap.Wishlist)

	remote, err := srv.store.FetchMembership(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.ProductID{"A", "B"}, remote)

	rec, env = srv.do(t, http.MethodPost, "/api/v1/session/sign-out", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap = decodeData[service.Snapshot](t, env)
	assert.False(t, snap.Authenticated)
	assert.Empty(t, snap.Wishlist)
}

func TestSignedInSession_RequiresOwnerToken(t *testing.T) {
	srv := newTestServer(t)
	owner, err := srv.jwt.GenerateAccessToken("acct-1", "a@example.com")
	require.NoError(t, err)
	other, err := srv.jwt.GenerateAccessToken("acct-2", "b@example.com")
	require.NoError(t, err)

	rec, _ := srv.do(t, http.MethodPost, "/api/v1/session/sign-in", nil, "Authorization", "Bearer "+owner)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := srv.do(t, http.MethodGet, "/api/v1/session/wishlist", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "session id alone is not enough once signed in")
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	rec, env = srv.do(t, http.MethodPost, "/api/v1/session/wishlist/A/toggle", nil, "Authorization", "Bearer "+other)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	rec, _ = srv.do(t, http.MethodPost, "/api/v1/session/sign-out", nil, "Authorization", "Bearer "+other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	remote, err := srv.store.FetchMembership(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Empty(t, remote)

	rec, env = srv.do(t, http.MethodGet, "/api/v1/session", nil, "Authorization", "Bearer "+owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acct-1", decodeData[service.Snapshot](t, env).AccountID)
}

func TestNotices_EmptyByDefault(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, http.MethodGet, "/api/v1/session/notices", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[[]domain.Notice](t, env))
}

// ============================================================================
// Compare and recently viewed
// ============================================================================

func TestCompare_Flow(t *testing.T) {
	srv := newTestServer(t)
	for _, body := range []string{
		`{"id":"A","name":"A","price":1}`,
		`{"id":"B","name":"B","price":1}`,
		`{"id":"C","name":"C","price":1}`,
		`{"id":"D","name":"D","price":1}`,
	} {
		rec, _ := srv.do(t, http.MethodPost, "/api/v1/session/compare", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	_, env := srv.do(t, http.MethodGet, "/api/v1/session/compare", nil)
	items := decodeData[ProductsResponse](t, env).Items
	require.Len(t, items, 3)
	assert.Equal(t, domain.ProductID("B"), items[0].ID)

	_, env = srv.do(t, http.MethodDelete, "/api/v1/session/compare/C", nil)
	assert.Len(t, decodeData[ProductsResponse](t, env).Items, 2)

	_, env = srv.do(t, http.MethodPost, "/api/v1/session/compare/submit", nil)
	assert.Len(t, decodeData[ProductsResponse](t, env).Items, 2)

	_, env = srv.do(t, http.MethodGet, "/api/v1/session/compare", nil)
	assert.Empty(t, decodeData[ProductsResponse](t, env).Items)

	srv.do(t, http.MethodPost, "/api/v1/session/compare", `{"id":"E","name":"E","price":1}`)
	_, env = srv.do(t, http.MethodDelete, "/api/v1/session/compare", nil)
	assert.Empty(t, decodeData[ProductsResponse](t, env).Items)
}

func TestRecent_Flow(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/v1/session/recent", `{"id":"A","name":"A","price":1}`)
	srv.do(t, http.MethodPost, "/api/v1/session/recent", `{"id":"B","name":"B","price":1}`)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/session/recent", `{"id":"A","name":"A","price":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	items := decodeData[ProductsResponse](t, env).Items
	require.Len(t, items, 2)
	assert.Equal(t, domain.ProductID("A"), items[0].ID)

	_, env = srv.do(t, http.MethodGet, "/api/v1/session/recent", nil)
	assert.Len(t, decodeData[ProductsResponse](t, env).Items, 2)
}

// ============================================================================
// Operational endpoints
// ============================================================================

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodGet, "/api/v1/session", nil)

	rec, _ := srv.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = srv.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_http_requests_total")
	assert.Contains(t, rec.Body.String(), "storefront_sessions_active")
}

func TestRegistryClosed_ReturnsServiceUnavailable(t *testing.T) {
	srv := newTestServer(t)
	srv.registry.Close()

	rec, env := srv.do(t, http.MethodGet, "/api/v1/session", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
}

func TestRouter_RequestLoggerCarriesSessionAndAccount(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	registry := service.NewRegistry(memory.NewLocalCache(), service.Dependencies{
		Wishlists: memory.NewWishlistStore(),
		Logger:    logger,
	}, time.Hour)
	registry.Close()

	jwt := auth.NewJWTManager("test-secret", time.Hour)
	handler := NewRouter(RouterConfig{
		Registry:      registry,
		Health:        health.NewHandler(),
		ValidateToken: jwt.Validate,
		Logger:        logger,
	})
	token, err := jwt.GenerateAccessToken("acct-9", "z@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set(middleware.SessionHeader, testSession)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var failed map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		if json.Unmarshal(line, &entry) == nil && entry["msg"] == "request failed" {
			failed = entry
		}
	}
	require.NotNil(t, failed, buf.String())
	assert.Equal(t, testSession, failed["session_id"])
	assert.Equal(t, "acct-9", failed["user_id"])
}
