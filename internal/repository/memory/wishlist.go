package memory

import (
	"context"
	"sync"

	"github.com/utafrali/storefront/internal/domain"
)

// WishlistStore is an in-process repository.WishlistStore.
type WishlistStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Membership
}

// NewWishlistStore creates an empty store.
func NewWishlistStore() *WishlistStore {
	return &WishlistStore{accounts: make(map[string]domain.Membership)}
}

// FetchMembership returns the account's product ids, sorted; an unknown
// account has none.
func (s *WishlistStore) FetchMembership(_ context.Context, accountID string) ([]domain.ProductID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.accounts[accountID]
	if !ok {
		return []domain.ProductID{}, nil
	}
	return m.List(), nil
}

// InsertMembership adds id to the account; adding a member again is a no-op.
func (s *WishlistStore) InsertMembership(_ context.Context, accountID string, id domain.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.accounts[accountID]
	m.Set(id, true)
	s.accounts[accountID] = m
	return nil
}

// DeleteMembership removes id from the account if present.
func (s *WishlistStore) DeleteMembership(_ context.Context, accountID string, id domain.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.accounts[accountID]; ok {
		m.Set(id, false)
	}
	return nil
}

// BulkUpsertMembership adds every id to the account. It always succeeds.
func (s *WishlistStore) BulkUpsertMembership(_ context.Context, accountID string, ids []domain.ProductID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.accounts[accountID]
	for _, id := range ids {
		m.Set(id, true)
	}
	s.accounts[accountID] = m
	return true, nil
}
