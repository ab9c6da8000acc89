package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
)

// noticeInboxSize bounds the notices kept for a session between drains.
const noticeInboxSize = 20

// Session is one shopper's storefront state: cart, wishlist, compare set
// and recently viewed products. It is safe for concurrent use.
//
// mu guards the cart, compare set, recent history and notice inbox. The
// wishlist engine locks itself; the two locks are never held together.
type Session struct {
	id       string
	events   EventPublisher
	notifier Notifier
	logger   *slog.Logger

	wishlist *WishlistEngine

	mu      sync.Mutex
	cart    *CartManager
	compare domain.CompareSet
	recent  domain.RecentlyViewed
	notices []domain.Notice
}

// CartView is the cart as presented to the shopper.
type CartView struct {
	Lines []domain.CartLine `json:"lines"`
	Total decimal.Decimal   `json:"total"`
	Count int               `json:"count"`
	Open  bool              `json:"open"`
}

// Snapshot is a consistent copy of the session state for rendering.
type Snapshot struct {
	SessionID     string             `json:"sessionId"`
	AccountID     string             `json:"accountId,omitempty"`
	Authenticated bool               `json:"authenticated"`
	Cart          CartView           `json:"cart"`
	Wishlist      []domain.ProductID `json:"wishlist"`
	Compare       []domain.Product   `json:"compare"`
	Recent        []domain.Product   `json:"recent"`
}

// NewSession builds a session over cache and restores the persisted cart
// and guest wishlist.
func NewSession(ctx context.Context, id string, cache repository.LocalCache, deps Dependencies) *Session {
	deps = deps.withDefaults()
	logger := deps.Logger.With(slog.String("session_id", id))

	s := &Session{
		id:       id,
		events:   deps.Events,
		notifier: deps.Notifier,
		logger:   logger,
		cart:     NewCartManager(cache, logger),
	}

	engineDeps := deps
	engineDeps.Logger = logger
	engineDeps.Notifier = NotifierFunc(s.notify)
	s.wishlist = NewWishlistEngine(id, cache, engineDeps)

	s.cart.Load(ctx)
	s.wishlist.Load(ctx)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// ----- Cart -----

// AddItem adds one unit of p to the cart.
func (s *Session) AddItem(ctx context.Context, p domain.Product) error {
	s.mu.Lock()
	err := s.cart.AddItem(ctx, p)
	view := s.cartViewLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.publishCart(ctx, view)
	return nil
}

// RemoveItem deletes the cart line for id.
func (s *Session) RemoveItem(ctx context.Context, id domain.ProductID) {
	s.mu.Lock()
	removed := s.cart.RemoveItem(ctx, id)
	view := s.cartViewLocked()
	s.mu.Unlock()

	if removed {
		s.publishCart(ctx, view)
	}
}

// UpdateQuantity applies delta to the cart line for id.
func (s *Session) UpdateQuantity(ctx context.Context, id domain.ProductID, delta int) {
	s.mu.Lock()
	found := s.cart.UpdateQuantity(ctx, id, delta)
	view := s.cartViewLocked()
	s.mu.Unlock()

	if found && delta != 0 {
		s.publishCart(ctx, view)
	}
}

// ClearCart empties the cart and erases its persisted record.
func (s *Session) ClearCart(ctx context.Context) {
	s.mu.Lock()
	s.cart.Clear(ctx)
	s.mu.Unlock()

	if err := s.events.PublishCartCleared(ctx, s.id, s.wishlist.AccountID()); err != nil {
		s.logger.WarnContext(ctx, "failed to publish cart.cleared event", slog.String("error", err.Error()))
	}
}

// Total returns the cart total.
func (s *Session) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total()
}

// Count returns the number of units in the cart.
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Count()
}

// Cart returns the current cart view.
func (s *Session) Cart() CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartViewLocked()
}

// CloseCartIndicator resets the open-cart indicator.
func (s *Session) CloseCartIndicator() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.CloseIndicator()
}

func (s *Session) cartViewLocked() CartView {
	return CartView{
		Lines: s.cart.Lines(),
		Total: s.cart.Total(),
		Count: s.cart.Count(),
		Open:  s.cart.IsOpen(),
	}
}

func (s *Session) publishCart(ctx context.Context, view CartView) {
	err := s.events.PublishCartUpdated(ctx, s.id, s.wishlist.AccountID(), view.Lines, view.Total, view.Count)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish cart.updated event", slog.String("error", err.Error()))
	}
}

// ----- Wishlist -----

// ToggleWishlist flips the wishlist membership of id.
func (s *Session) ToggleWishlist(ctx context.Context, id domain.ProductID) (bool, error) {
	return s.wishlist.Toggle(ctx, id)
}

// IsWishlisted reports whether id is on the wishlist.
func (s *Session) IsWishlisted(id domain.ProductID) bool {
	return s.wishlist.IsWishlisted(id)
}

// WishlistMembership returns the wishlisted ids sorted.
func (s *Session) WishlistMembership() []domain.ProductID {
	return s.wishlist.Membership()
}

// SignIn switches the session to accountID, migrating the guest wishlist.
func (s *Session) SignIn(ctx context.Context, accountID string) error {
	return s.wishlist.SignIn(ctx, accountID)
}

// SignOut returns the session to guest.
func (s *Session) SignOut(ctx context.Context) {
	s.wishlist.SignOut(ctx)
}

// AccountID returns the signed-in account or "".
func (s *Session) AccountID() string {
	return s.wishlist.AccountID()
}

// Wait blocks until in-flight wishlist writes have settled.
func (s *Session) Wait() {
	s.wishlist.Wait()
}

// ----- Compare -----

// AddToCompare adds p to the compare set, evicting the oldest entry when
// full.
func (s *Session) AddToCompare(p domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compare.Add(p)
	return nil
}

// RemoveFromCompare removes id from the compare set.
func (s *Session) RemoveFromCompare(id domain.ProductID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compare.Remove(id)
}

// ClearCompare empties the compare set.
func (s *Session) ClearCompare() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compare.Clear()
}

// CompareSet returns the compare entries in insertion order.
func (s *Session) CompareSet() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compare.Items()
}

// SubmitCompare returns the entries to compare and clears the set.
func (s *Session) SubmitCompare() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compare.Submit()
}

// ----- Recently viewed -----

// RecordView moves p to the front of the recently viewed history.
func (s *Session) RecordView(p domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent.Record(p)
	return nil
}

// RecentlyViewed returns the history, most recent first.
func (s *Session) RecentlyViewed() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recent.Items()
}

// ----- Notices -----

func (s *Session) notify(ctx context.Context, n domain.Notice) {
	s.mu.Lock()
	if len(s.notices) == noticeInboxSize {
		s.notices = s.notices[1:]
	}
	s.notices = append(s.notices, n)
	s.mu.Unlock()

	s.notifier.Notify(ctx, n)
}

// Notices returns and clears the pending notices, oldest first.
func (s *Session) Notices() []domain.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	if out == nil {
		return []domain.Notice{}
	}
	return out
}

// Snapshot returns the full session state.
func (s *Session) Snapshot() Snapshot {
	accountID := s.wishlist.AccountID()
	wishlist := s.wishlist.Membership()

	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionID:     s.id,
		AccountID:     accountID,
		Authenticated: accountID != "",
		Cart:          s.cartViewLocked(),
		Wishlist:      wishlist,
		Compare:       s.compare.Items(),
		Recent:        s.recent.Items(),
	}
}
