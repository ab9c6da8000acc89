package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// SessionKeyPrefix namespaces a session's records in the shared Local Cache.
func SessionKeyPrefix(sessionID string) string {
	return "session:" + sessionID + ":"
}

// NewSessionID mints an id for a browser that did not present one.
func NewSessionID() string {
	return uuid.NewString()
}

type registryEntry struct {
	session  *Session
	lastSeen time.Time
}

// Registry lazily creates sessions and evicts the ones left idle. Session
// state lives in the Local Cache, so an evicted guest session is rebuilt
// unchanged on its next request.
type Registry struct {
	cache   repository.LocalCache
	deps    Dependencies
	idle    time.Duration
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*registryEntry
	closed   bool
}

// NewRegistry creates a registry whose sessions share cache under
// per-session key prefixes.
func NewRegistry(cache repository.LocalCache, deps Dependencies, idle time.Duration) *Registry {
	deps = deps.withDefaults()
	return &Registry{
		cache:    cache,
		deps:     deps,
		idle:     idle,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      time.Now,
		sessions: make(map[string]*registryEntry),
	}
}

// Get returns the session for id, building it on first use.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, apperrors.ServiceUnavailable("storefront is shutting down")
	}
	if e, ok := r.sessions[id]; ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		return e.session, nil
	}
	r.mu.Unlock()

	// Loading reads the Local Cache, so build outside the lock.
	s := NewSession(ctx, id, repository.Prefixed(r.cache, SessionKeyPrefix(id)), r.deps)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, apperrors.ServiceUnavailable("storefront is shutting down")
	}
	if e, ok := r.sessions[id]; ok {
		e.lastSeen = r.now()
		return e.session, nil
	}
	r.sessions[id] = &registryEntry{session: s, lastSeen: r.now()}
	r.metrics.activeSessions(len(r.sessions))

	r.logger.DebugContext(ctx, "session created", slog.String("session_id", id))
	return s, nil
}

// Len returns the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle drops sessions not used for longer than the idle timeout and
// returns how many were dropped.
func (r *Registry) EvictIdle(ctx context.Context) int {
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	var evicted []*Session
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			evicted = append(evicted, e.session)
			delete(r.sessions, id)
		}
	}
	r.metrics.activeSessions(len(r.sessions))
	r.mu.Unlock()

	for _, s := range evicted {
		s.Wait()
	}
	if len(evicted) > 0 {
		r.logger.InfoContext(ctx, "evicted idle sessions", slog.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Run evicts idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle(ctx)
		}
	}
}

// Close refuses new sessions and waits for every in-flight wishlist write.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		sessions = append(sessions, e.session)
	}
	r.sessions = make(map[string]*registryEntry)
	r.metrics.activeSessions(0)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Wait()
	}
}
