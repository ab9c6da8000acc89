package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
)

// Notifier receives advisory notices. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notice)
}

// EventPublisher emits domain events for state changes.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, sessionID, accountID string, lines []domain.CartLine, total decimal.Decimal, count int) error
	PublishCartCleared(ctx context.Context, sessionID, accountID string) error
	PublishWishlistMigrated(ctx context.Context, sessionID, accountID string, ids []domain.ProductID, migrated bool) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) PublishCartUpdated(context.Context, string, string, []domain.CartLine, decimal.Decimal, int) error {
	return nil
}

func (NopPublisher) PublishCartCleared(context.Context, string, string) error { return nil }

func (NopPublisher) PublishWishlistMigrated(context.Context, string, string, []domain.ProductID, bool) error {
	return nil
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n domain.Notice)

func (f NotifierFunc) Notify(ctx context.Context, n domain.Notice) { f(ctx, n) }
