package spoiler

import (
	"context"

	"github.com/google/uuid"

	"github.com/gridlog/gridlog/internal/cache"
	"github.com/gridlog/gridlog/internal/models"
)

// RevealCoordinator executes the explicit "show me the result" action:
// the only way a viewer flips a session from hidden to permanently
// visible without rating it, and the only write path in this core.
type RevealCoordinator struct {
	store  Store
	cache  *cache.ResponseCache
	engine *Engine
}

// NewRevealCoordinator wires the coordinator over the same store and
// cache the engine uses, so eviction and recompute agree on keys.
func NewRevealCoordinator(store Store, rc *cache.ResponseCache, engine *Engine) *RevealCoordinator {
	return &RevealCoordinator{store: store, cache: rc, engine: engine}
}

// Reveal creates a bare entry for (viewer, session) and returns the now
// fully visible session detail. Idempotent: a second call, or losing a
// race against a concurrent reveal or a normal rating, reports
// AlreadyLogged instead of failing: the uniqueness constraint on
// (viewer, session) is authoritative and a duplicate key means "already
// revealed, proceed".
//
// confirmed must be explicitly true; a reveal is destructive to the
// viewer's spoiler protection and is never performed implicitly.
//
// Errors: ErrUnauthorized for an anonymous caller or a missing
// confirmation (no side effects in either case), ErrNotFound for an
// unknown session, ErrUnavailable when the store cannot durably create
// the entry, never reported as success.
func (r *RevealCoordinator) Reveal(ctx context.Context, sessionID uuid.UUID, viewerID *uuid.UUID, confirmed bool) (*models.RevealResponse, error) {
	if viewerID == nil || !confirmed {
		return nil, ErrUnauthorized
	}

	// Existence check first: revealing an unknown session must 404, not
	// insert a dangling entry.
	if _, err := r.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	_, inserted, err := r.store.InsertEntryIfAbsent(ctx, *viewerID, sessionID)
	if err != nil {
		return nil, err
	}

	// The pair's entry state changed (or is confirmed to exist): drop the
	// viewer's cached detail variants so the recompute below and every
	// later read see full visibility immediately. Summary keys fall back
	// to their short TTL.
	r.cache.Evict(ctx, cache.DetailKeysFor(sessionID, viewerID.String())...)

	detail, err := r.engine.SessionDetail(ctx, sessionID, viewerID, false)
	if err != nil {
		return nil, err
	}

	return &models.RevealResponse{
		Revealed:      true,
		AlreadyLogged: !inserted,
		Session:       detail,
	}, nil
}

// InvalidateEntry drops the cached detail variants for a (viewer,
// session) pair after the normal log flow creates, updates or deletes an
// entry. The rating flow itself lives outside this core; only the cache
// coherence rule is owned here.
func (r *RevealCoordinator) InvalidateEntry(ctx context.Context, sessionID, viewerID uuid.UUID) {
	r.cache.Evict(ctx, cache.DetailKeysFor(sessionID, viewerID.String())...)
}
