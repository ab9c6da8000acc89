package repository

import (
	"context"
	"errors"

	"github.com/utafrali/storefront/internal/domain"
)

// ErrCacheMiss is returned by LocalCache.Get when the key holds no record.
var ErrCacheMiss = errors.New("local cache: miss")

// LocalCache is the shopper-scoped key-value store that survives reloads.
type LocalCache interface {
	// Get returns the record stored under key or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the record stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// WishlistStore is the authoritative, per-account wishlist membership.
type WishlistStore interface {
	// FetchMembership lists the account's wishlisted ids. An unprovisioned
	// backing relation yields an empty list.
	FetchMembership(ctx context.Context, accountID string) ([]domain.ProductID, error)

	// InsertMembership adds one id. An existing membership is success.
	InsertMembership(ctx context.Context, accountID string, id domain.ProductID) error

	// DeleteMembership removes one id.
	DeleteMembership(ctx context.Context, accountID string, id domain.ProductID) error

	// BulkUpsertMembership idempotently adds ids. It returns false with a
	// nil error when the store rejects the batch structurally (missing
	// schema, constraint violation) and false with an error on transport
	// failures.
	BulkUpsertMembership(ctx context.Context, accountID string, ids []domain.ProductID) (bool, error)
}

// Prefixed scopes every key of c under prefix.
func Prefixed(c LocalCache, prefix string) LocalCache {
	return prefixedCache{inner: c, prefix: prefix}
}

type prefixedCache struct {
	inner  LocalCache
	prefix string
}

func (p prefixedCache) Get(ctx context.Context, key string) ([]byte, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p prefixedCache) Set(ctx context.Context, key string, value []byte) error {
	return p.inner.Set(ctx, p.prefix+key, value)
}

func (p prefixedCache) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.prefix+key)
}
