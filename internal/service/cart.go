package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
)

// CartManager owns the cart lines and mirrors every change to the Local
// Cache. It is not safe for concurrent use; Session serializes access.
type CartManager struct {
	cache  repository.LocalCache
	logger *slog.Logger
	cart   *domain.Cart
	open   bool
}

// NewCartManager creates an empty manager. Call Load to restore a
// persisted cart.
func NewCartManager(cache repository.LocalCache, logger *slog.Logger) *CartManager {
	return &CartManager{
		cache:  cache,
		logger: logger,
		cart:   domain.NewCart(nil),
	}
}

// Load restores the cart from the Local Cache. A missing, unreadable or
// corrupt record leaves the cart empty.
func (m *CartManager) Load(ctx context.Context) {
	m.cart = domain.NewCart(nil)

	data, err := m.cache.Get(ctx, domain.CartRecordKey)
	if err != nil {
		if !errors.Is(err, repository.ErrCacheMiss) {
			m.logger.WarnContext(ctx, "failed to read cart record, starting empty",
				slog.String("error", err.Error()),
			)
		}
		return
	}

	lines, err := domain.DecodeCartRecord(data)
	if err != nil {
		m.logger.WarnContext(ctx, "discarding corrupt cart record",
			slog.String("error", err.Error()),
		)
		return
	}
	m.cart = domain.NewCart(lines)
}

// AddItem adds one unit of p and opens the cart indicator.
func (m *CartManager) AddItem(ctx context.Context, p domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.cart.Add(p)
	m.open = true
	m.persist(ctx)

	m.logger.DebugContext(ctx, "item added to cart",
		slog.String("product_id", p.ID.String()),
		slog.Int("quantity", m.cart.Quantity(p.ID)),
	)
	return nil
}

// RemoveItem deletes the line for id if present and reports whether one
// existed.
func (m *CartManager) RemoveItem(ctx context.Context, id domain.ProductID) bool {
	removed := m.cart.Remove(id)
	m.persist(ctx)
	return removed
}

// UpdateQuantity applies delta to the line for id, removing it at zero.
// It reports whether a line was found.
func (m *CartManager) UpdateQuantity(ctx context.Context, id domain.ProductID, delta int) bool {
	found := m.cart.UpdateQuantity(id, delta)
	m.persist(ctx)
	return found
}

// Clear empties the cart and erases its Local Cache record.
func (m *CartManager) Clear(ctx context.Context) {
	m.cart.Clear()
	if err := m.cache.Delete(ctx, domain.CartRecordKey); err != nil {
		m.logger.WarnContext(ctx, "failed to delete cart record",
			slog.String("error", err.Error()),
		)
	}
}

// Lines returns a copy of the cart lines.
func (m *CartManager) Lines() []domain.CartLine { return m.cart.Lines() }

// Total returns Σ price × quantity.
func (m *CartManager) Total() decimal.Decimal { return m.cart.Total() }

// Count returns Σ quantity.
func (m *CartManager) Count() int { return m.cart.Count() }

// IsOpen reports whether the cart indicator was opened by an add.
func (m *CartManager) IsOpen() bool { return m.open }

// CloseIndicator resets the cart indicator.
func (m *CartManager) CloseIndicator() { m.open = false }

// persist writes the full line list. Failures are logged, never returned.
func (m *CartManager) persist(ctx context.Context) {
	data, err := domain.EncodeCartRecord(m.cart.Lines())
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to encode cart record", slog.String("error", err.Error()))
		return
	}
	if err := m.cache.Set(ctx, domain.CartRecordKey, data); err != nil {
		m.logger.WarnContext(ctx, "failed to persist cart",
			slog.String("error", err.Error()),
		)
	}
}
