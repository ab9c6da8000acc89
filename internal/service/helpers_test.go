package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
)

// --- Mock Wishlist Store ---

type mockWishlistStore struct {
	mock.Mock
}

func (m *mockWishlistStore) FetchMembership(ctx context.Context, accountID string) ([]domain.ProductID, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ProductID), args.Error(1)
}

func (m *mockWishlistStore) InsertMembership(ctx context.Context, accountID string, id domain.ProductID) error {
	return m.Called(ctx, accountID, id).Error(0)
}

func (m *mockWishlistStore) DeleteMembership(ctx context.Context, accountID string, id domain.ProductID) error {
	return m.Called(ctx, accountID, id).Error(0)
}

func (m *mockWishlistStore) BulkUpsertMembership(ctx context.Context, accountID string, ids []domain.ProductID) (bool, error) {
	args := m.Called(ctx, accountID, ids)
	return args.Bool(0), args.Error(1)
}

// --- Mock Local Cache ---

type mockLocalCache struct {
	mock.Mock
}

func (m *mockLocalCache) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockLocalCache) Set(ctx context.Context, key string, value []byte) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *mockLocalCache) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// --- Recorders ---

type noticeRecorder struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (r *noticeRecorder) Notify(_ context.Context, n domain.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) all() []domain.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notice(nil), r.notices...)
}

type cartEvent struct {
	sessionID string
	accountID string
	cleared   bool
	count     int
	total     decimal.Decimal
}

type migratedEvent struct {
	accountID string
	ids       []domain.ProductID
	migrated  bool
}

type eventRecorder struct {
	mu       sync.Mutex
	carts    []cartEvent
	migrated []migratedEvent
}

func (r *eventRecorder) PublishCartUpdated(_ context.Context, sessionID, accountID string, _ []domain.CartLine, total decimal.Decimal, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts = append(r.carts, cartEvent{sessionID: sessionID, accountID: accountID, count: count, total: total})
	return nil
}

func (r *eventRecorder) PublishCartCleared(_ context.Context, sessionID, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts = append(r.carts, cartEvent{sessionID: sessionID, accountID: accountID, cleared: true})
	return nil
}

func (r *eventRecorder) PublishWishlistMigrated(_ context.Context, _, accountID string, ids []domain.ProductID, migrated bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.migrated = append(r.migrated, migratedEvent{accountID: accountID, ids: ids, migrated: migrated})
	return nil
}

func (r *eventRecorder) cartEvents() []cartEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cartEvent(nil), r.carts...)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func product(id, price string) domain.Product {
	return domain.Product{
		ID:    domain.ProductID(id),
		Name:  "Product " + id,
		Price: decimal.RequireFromString(price),
	}
}

func ids(raw ...string) []domain.ProductID {
	out := make([]domain.ProductID, len(raw))
	for i, r := range raw {
		out[i] = domain.ProductID(r)
	}
	return out
}

func seedGuestWishlist(t *testing.T, cache repository.LocalCache, members ...string) {
	t.Helper()
	data, err := domain.EncodeGuestWishlist(ids(members...))
	require.NoError(t, err)
	require.NoError(t, cache.Set(context.Background(), domain.GuestWishlistKey, data))
}
