package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Dependencies are the collaborators shared by every session. Only
// Wishlists is required.
type Dependencies struct {
	Wishlists repository.WishlistStore
	Events    EventPublisher
	Notifier  Notifier
	Metrics   *Metrics
	Logger    *slog.Logger
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Events == nil {
		d.Events = NopPublisher{}
	}
	if d.Notifier == nil {
		d.Notifier = NotifierFunc(func(context.Context, domain.Notice) {})
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// WishlistEngine keeps the shopper's wishlist membership in sync with the
// Local Cache while a guest and with the Remote Wishlist Store once signed
// in. Remote toggles are applied optimistically and undone on failure.
//
// The engine is safe for concurrent use.
type WishlistEngine struct {
	sessionID string
	cache     repository.LocalCache
	remote    repository.WishlistStore
	events    EventPublisher
	notifier  Notifier
	metrics   *Metrics
	logger    *slog.Logger

	mu         sync.Mutex
	membership domain.Membership
	accountID  string
	// epoch changes on every identity transition; completions issued under
	// an older epoch never touch the current membership.
	epoch uint64
	syncs map[domain.ProductID]*idSync

	inflight sync.WaitGroup
}

// NewWishlistEngine creates a guest engine with an empty membership. Call
// Load to restore the guest wishlist.
func NewWishlistEngine(sessionID string, cache repository.LocalCache, deps Dependencies) *WishlistEngine {
	deps = deps.withDefaults()
	return &WishlistEngine{
		sessionID:  sessionID,
		cache:      cache,
		remote:     deps.Wishlists,
		events:     deps.Events,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		membership: domain.NewMembership(),
		syncs:      make(map[domain.ProductID]*idSync),
	}
}

// Load replaces the membership with the persisted guest wishlist.
func (e *WishlistEngine) Load(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.membership = domain.NewMembership(e.readGuest(ctx)...)
}

// SignIn switches the engine to accountID, migrating the guest wishlist to
// the Remote Wishlist Store. It returns once the migration has settled.
func (e *WishlistEngine) SignIn(ctx context.Context, accountID string) error {
	if accountID == "" {
		return apperrors.InvalidInput("account id is required")
	}

	e.mu.Lock()
	if e.accountID == accountID {
		e.mu.Unlock()
		return nil
	}
	if e.accountID != "" {
		e.signOutLocked(ctx)
	}
	e.epoch++
	e.syncs = make(map[domain.ProductID]*idSync)
	e.accountID = accountID

	res := e.migrate(ctx, accountID)
	e.membership = domain.NewMembership(res.membership...)
	e.mu.Unlock()

	e.metrics.migration(res.outcome)
	if res.notice != nil {
		e.notifier.Notify(ctx, *res.notice)
	}
	if len(res.local) > 0 {
		if err := e.events.PublishWishlistMigrated(ctx, e.sessionID, accountID, res.local, res.migrated); err != nil {
			e.logger.WarnContext(ctx, "failed to publish wishlist.migrated event",
				slog.String("account_id", accountID),
				slog.String("error", err.Error()),
			)
		}
	}

	e.logger.InfoContext(ctx, "wishlist signed in",
		slog.String("account_id", accountID),
		slog.String("migration", res.outcome),
		slog.Int("local", len(res.local)),
		slog.Int("members", len(res.membership)),
	)
	return nil
}

type migration struct {
	local      []domain.ProductID
	membership []domain.ProductID
	migrated   bool
	outcome    string
	notice     *domain.Notice
}

// migrate pushes the guest set to the remote store and resolves the
// membership to show. Called with e.mu held.
func (e *WishlistEngine) migrate(ctx context.Context, accountID string) migration {
	res := migration{local: e.readGuest(ctx), outcome: migrationSkipped}

	if len(res.local) > 0 {
		ok, err := e.remote.BulkUpsertMembership(ctx, accountID, res.local)
		res.migrated = ok && err == nil
		if res.migrated {
			res.outcome = migrationMigrated
		} else {
			res.outcome = migrationFailed
			attrs := []any{slog.String("account_id", accountID), slog.Int("items", len(res.local))}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			e.logger.WarnContext(ctx, "guest wishlist migration failed, keeping local copy", attrs...)
		}
	}

	remote, err := e.remote.FetchMembership(ctx, accountID)
	resolveMigrated := res.migrated
	if err != nil {
		e.logger.WarnContext(ctx, "failed to fetch remote wishlist",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
		remote = nil
		resolveMigrated = false
	}
	res.membership = domain.Resolve(res.local, remote, resolveMigrated)

	if res.outcome == migrationFailed || err != nil {
		res.notice = &domain.Notice{
			Kind:      domain.NoticeWishlistMigrationFailed,
			SessionID: e.sessionID,
			AccountID: accountID,
			Message:   "Your saved wishlist could not be synced. Showing the items on this device.",
		}
	}

	if res.migrated {
		if err := e.cache.Delete(ctx, domain.GuestWishlistKey); err != nil {
			e.logger.WarnContext(ctx, "failed to delete migrated guest wishlist",
				slog.String("error", err.Error()),
			)
		}
	}
	return res
}

// SignOut drops the account membership and returns to the guest wishlist.
func (e *WishlistEngine) SignOut(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signOutLocked(ctx)
}

func (e *WishlistEngine) signOutLocked(ctx context.Context) {
	if e.accountID != "" {
		e.logger.InfoContext(ctx, "wishlist signed out", slog.String("account_id", e.accountID))
	}
	e.epoch++
	e.syncs = make(map[domain.ProductID]*idSync)
	e.accountID = ""
	e.membership = domain.NewMembership(e.readGuest(ctx)...)
}

// idSync tracks the remote writes of one id that have not settled yet and
// the last membership the remote store confirmed for it.
type idSync struct {
	pending   int
	confirmed bool
}

// Toggle flips the membership of id and returns the new value. Signed in,
// the remote write happens in the background. A failed write is undone while
// the membership still shows its change; once every write for the id has
// settled, the membership falls back to the last confirmed remote value.
func (e *WishlistEngine) Toggle(ctx context.Context, id domain.ProductID) (bool, error) {
	if id == "" {
		return false, apperrors.InvalidInput("product id is required")
	}

	e.mu.Lock()
	adding := !e.membership.Has(id)
	e.membership.Set(id, adding)

	if e.accountID == "" {
		e.persistGuestLocked(ctx)
		e.mu.Unlock()
		return adding, nil
	}

	st, ok := e.syncs[id]
	if !ok {
		st = &idSync{confirmed: !adding}
		e.syncs[id] = st
	}
	st.pending++
	pending := domain.PendingToggle{ID: id, Adding: adding, Epoch: e.epoch}
	accountID := e.accountID
	e.inflight.Add(1)
	e.mu.Unlock()

	go e.sync(context.WithoutCancel(ctx), accountID, pending)
	return adding, nil
}

func (e *WishlistEngine) sync(ctx context.Context, accountID string, p domain.PendingToggle) {
	defer e.inflight.Done()

	var err error
	if p.Adding {
		err = e.remote.InsertMembership(ctx, accountID, p.ID)
	} else {
		err = e.remote.DeleteMembership(ctx, accountID, p.ID)
	}

	e.mu.Lock()
	reverted := e.settleLocked(p, err)
	e.mu.Unlock()

	if err == nil {
		if reverted {
			e.logger.InfoContext(ctx, "wishlist restored to the confirmed remote state",
				slog.String("account_id", accountID),
				slog.String("product_id", p.ID.String()),
			)
		}
		return
	}

	if !reverted {
		e.logger.InfoContext(ctx, "wishlist sync failed for a superseded change",
			slog.String("account_id", accountID),
			slog.String("product_id", p.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	e.metrics.rollback()
	e.logger.WarnContext(ctx, "wishlist sync failed, change undone",
		slog.String("account_id", accountID),
		slog.String("product_id", p.ID.String()),
		slog.Bool("adding", p.Adding),
		slog.String("error", err.Error()),
	)
	e.notifier.Notify(ctx, domain.Notice{
		Kind:      domain.NoticeWishlistSyncFailed,
		SessionID: e.sessionID,
		AccountID: accountID,
		ProductID: p.ID,
		Message:   syncFailedMessage(p.Adding),
	})
}

// settleLocked records the outcome of p and reports whether the membership
// of p.ID changed as a result. Called with e.mu held.
func (e *WishlistEngine) settleLocked(p domain.PendingToggle, err error) bool {
	if p.Epoch != e.epoch {
		return false
	}
	before := e.membership.Has(p.ID)

	st := e.syncs[p.ID]
	if st != nil {
		st.pending--
		if err == nil {
			st.confirmed = p.Adding
		}
	}
	if err != nil && p.ShouldRevert(e.membership, e.epoch) {
		e.membership.Set(p.ID, !p.Adding)
	}
	if st != nil && st.pending <= 0 {
		e.membership.Set(p.ID, st.confirmed)
		delete(e.syncs, p.ID)
	}
	return e.membership.Has(p.ID) != before
}

func syncFailedMessage(adding bool) string {
	if adding {
		return "We couldn't save this item to your wishlist. Please try again."
	}
	return "We couldn't remove this item from your wishlist. Please try again."
}

// Wait blocks until every in-flight remote toggle has settled.
func (e *WishlistEngine) Wait() {
	e.inflight.Wait()
}

// IsWishlisted reports whether id is currently a member.
func (e *WishlistEngine) IsWishlisted(id domain.ProductID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.membership.Has(id)
}

// Membership returns the members sorted by id.
func (e *WishlistEngine) Membership() []domain.ProductID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.membership.List()
}

// Count returns the number of members.
func (e *WishlistEngine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.membership.Len()
}

// AccountID returns the signed-in account or "" for a guest.
func (e *WishlistEngine) AccountID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accountID
}

// Authenticated reports whether an account is signed in.
func (e *WishlistEngine) Authenticated() bool {
	return e.AccountID() != ""
}

func (e *WishlistEngine) readGuest(ctx context.Context) []domain.ProductID {
	data, err := e.cache.Get(ctx, domain.GuestWishlistKey)
	if err != nil {
		if !errors.Is(err, repository.ErrCacheMiss) {
			e.logger.WarnContext(ctx, "failed to read guest wishlist", slog.String("error", err.Error()))
		}
		return nil
	}
	ids, err := domain.DecodeGuestWishlist(data)
	if err != nil {
		e.logger.WarnContext(ctx, "discarding corrupt guest wishlist", slog.String("error", err.Error()))
		return nil
	}
	return ids
}

func (e *WishlistEngine) persistGuestLocked(ctx context.Context) {
	data, err := domain.EncodeGuestWishlist(e.membership.List())
	if err == nil {
		err = e.cache.Set(ctx, domain.GuestWishlistKey, data)
	}
	if err != nil {
		e.logger.WarnContext(ctx, "failed to persist guest wishlist",
			slog.String("error", err.Error()),
		)
	}
}
