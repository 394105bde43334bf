package spoiler

import (
	"context"

	"github.com/google/uuid"

	"github.com/gridlog/gridlog/internal/models"
)

// Store is the persistence contract this package consumes. The sessions,
// results and viewers tables are owned by external collaborators
// (ingestion, identity); entries is the single table this core writes,
// and only through InsertEntryIfAbsent.
type Store interface {
	// GetSession returns the session with its result rows in ingestion
	// order, or ErrNotFound.
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)

	// GetSessions returns the sessions that exist among ids, in any order.
	// Unknown ids are simply absent from the result, never an error.
	GetSessions(ctx context.Context, ids []uuid.UUID) ([]*models.Session, error)

	// GetViewer returns the viewer with its spoiler preference, or
	// ErrNotFound.
	GetViewer(ctx context.Context, id uuid.UUID) (*models.Viewer, error)

	// HasEntry reports whether the viewer has an entry for the session.
	HasEntry(ctx context.Context, viewerID, sessionID uuid.UUID) (bool, error)

	// HasEntries resolves entry existence for many sessions with a single
	// query. Sessions without an entry are absent from the map.
	HasEntries(ctx context.Context, viewerID uuid.UUID, sessionIDs []uuid.UUID) (map[uuid.UUID]bool, error)

	// InsertEntryIfAbsent creates a bare entry for (viewer, session) unless
	// one already exists. inserted is false when the entry predates the
	// call; losing a race to a concurrent create is reported the same way,
	// never as an error.
	InsertEntryIfAbsent(ctx context.Context, viewerID, sessionID uuid.UUID) (models.Entry, bool, error)

	// GetEngagementStats returns per-session aggregates over entries with a
	// single query. Sessions with no entries are absent from the map.
	GetEngagementStats(ctx context.Context, sessionIDs []uuid.UUID) (map[uuid.UUID]models.EngagementStats, error)
}
