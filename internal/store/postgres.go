package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridlog/gridlog/internal/models"
	"github.com/gridlog/gridlog/internal/spoiler"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the persistence layer: read-only over sessions,
// results and viewers, with entries as the single writable table.
// It implements spoiler.Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema() error {
	_, err := p.pool.Exec(context.Background(), schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// GetSession fetches a session and then its result rows as an explicit
// two-step read: primary row first, referenced collection second,
// assembled in memory. Result rows come back in ingestion order
// (row_order) so unpositioned rows keep a stable relative order.
func (p *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var s models.Session
	err := p.pool.QueryRow(ctx, `
		SELECT name, venue, round, season, starts_at
		FROM sessions
		WHERE id = $1
	`, id.String()).Scan(&s.Name, &s.Venue, &s.Round, &s.Season, &s.StartsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, spoiler.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.ID = id

	results, err := p.resultsFor(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	s.Results = results[id]
	return &s, nil
}

// GetSessions fetches the sessions that exist among ids plus their result
// rows, two queries total. Unknown ids are silently absent.
func (p *PostgresStore) GetSessions(ctx context.Context, ids []uuid.UUID) ([]*models.Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, name, venue, round, season, starts_at
		FROM sessions
		WHERE id = ANY($1)
	`, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		var (
			s     models.Session
			rawID string
		)
		if err := rows.Scan(&rawID, &s.Name, &s.Venue, &s.Round, &s.Season, &s.StartsAt); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("malformed session id %q: %w", rawID, err)
		}
		s.ID = parsed
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	found := make([]uuid.UUID, len(out))
	for i, s := range out {
		found[i] = s.ID
	}
	results, err := p.resultsFor(ctx, found)
	if err != nil {
		return nil, err
	}
	for _, s := range out {
		s.Results = results[s.ID]
	}
	return out, nil
}

// resultsFor loads result rows for a set of sessions, grouped by session,
// each group in ingestion order.
func (p *PostgresStore) resultsFor(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.ResultRow, error) {
	if len(ids) == 0 {
		return map[uuid.UUID][]models.ResultRow{}, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT session_id, position, driver, team, status, fastest_lap, time_text
		FROM session_results
		WHERE session_id = ANY($1)
		ORDER BY session_id, row_order
	`, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]models.ResultRow, len(ids))
	for rows.Next() {
		var (
			rawID  string
			row    models.ResultRow
			status string
		)
		if err := rows.Scan(&rawID, &row.Position, &row.Driver, &row.Team, &status, &row.FastestLap, &row.TimeText); err != nil {
			return nil, err
		}
		row.Status = models.ResultStatus(status)
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("malformed session id %q: %w", rawID, err)
		}
		out[id] = append(out[id], row)
	}
	return out, rows.Err()
}

// GetViewer returns the viewer and its spoiler preference, or
// spoiler.ErrNotFound.
func (p *PostgresStore) GetViewer(ctx context.Context, id uuid.UUID) (*models.Viewer, error) {
	var (
		v    models.Viewer
		pref string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT handle, spoiler_pref
		FROM viewers
		WHERE id = $1
	`, id.String()).Scan(&v.Handle, &pref)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, spoiler.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.ID = id
	v.Preference = models.SpoilerPreference(pref)
	return &v, nil
}

// HasEntry reports whether the viewer has an entry for the session.
func (p *PostgresStore) HasEntry(ctx context.Context, viewerID, sessionID uuid.UUID) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM entries WHERE viewer_id = $1 AND session_id = $2
		)
	`, viewerID.String(), sessionID.String()).Scan(&exists)
	return exists, err
}

// HasEntries resolves entry existence for many sessions with one query.
func (p *PostgresStore) HasEntries(ctx context.Context, viewerID uuid.UUID, sessionIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	if len(sessionIDs) == 0 {
		return map[uuid.UUID]bool{}, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT session_id
		FROM entries
		WHERE viewer_id = $1 AND session_id = ANY($2)
	`, viewerID.String(), uuidStrings(sessionIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]bool, len(sessionIDs))
	for rows.Next() {
		var rawID string
		if err := rows.Scan(&rawID); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("malformed session id %q: %w", rawID, err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

// InsertEntryIfAbsent creates a bare entry unless one already exists for
// (viewer, session).
//
// The uniqueness constraint is the arbiter: ON CONFLICT DO NOTHING makes
// the losing side of a concurrent create observe "no rows" instead of a
// duplicate-key error, and we then read back the surviving row. Neither
// racer sees a hard failure.
func (p *PostgresStore) InsertEntryIfAbsent(ctx context.Context, viewerID, sessionID uuid.UUID) (models.Entry, bool, error) {
	entry := models.Entry{
		ID:        uuid.New(),
		ViewerID:  viewerID,
		SessionID: sessionID,
	}

	err := p.pool.QueryRow(ctx, `
		INSERT INTO entries(id, viewer_id, session_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (viewer_id, session_id) DO NOTHING
		RETURNING created_at
	`, entry.ID.String(), viewerID.String(), sessionID.String()).Scan(&entry.CreatedAt)

	if err == nil {
		return entry, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Entry{}, false, err
	}

	// Conflict: the entry already exists, read back the surviving row.
	existing, err := p.getEntry(ctx, viewerID, sessionID)
	if err != nil {
		return models.Entry{}, false, err
	}
	return existing, false, nil
}

// UpsertEntry is the normal log/rating flow: create the entry or update
// its rating fields in place.
func (p *PostgresStore) UpsertEntry(ctx context.Context, viewerID, sessionID uuid.UUID, stars *float64, excitement *int) (models.Entry, error) {
	entry := models.Entry{
		ViewerID:   viewerID,
		SessionID:  sessionID,
		Stars:      stars,
		Excitement: excitement,
	}

	var rawID string
	err := p.pool.QueryRow(ctx, `
		INSERT INTO entries(id, viewer_id, session_id, stars, excitement)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (viewer_id, session_id) DO UPDATE
		SET stars = EXCLUDED.stars, excitement = EXCLUDED.excitement
		RETURNING id, created_at
	`, uuid.New().String(), viewerID.String(), sessionID.String(), stars, excitement).Scan(&rawID, &entry.CreatedAt)
	if err != nil {
		return models.Entry{}, err
	}

	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return models.Entry{}, fmt.Errorf("malformed entry id %q: %w", rawID, err)
	}
	entry.ID = parsed
	return entry, nil
}

// DeleteEntry removes the viewer's entry for a session. deleted=false
// means there was nothing to delete.
func (p *PostgresStore) DeleteEntry(ctx context.Context, viewerID, sessionID uuid.UUID) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM entries WHERE viewer_id = $1 AND session_id = $2
	`, viewerID.String(), sessionID.String())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// getEntry reads one entry by its (viewer, session) pair.
func (p *PostgresStore) getEntry(ctx context.Context, viewerID, sessionID uuid.UUID) (models.Entry, error) {
	entry := models.Entry{ViewerID: viewerID, SessionID: sessionID}

	var rawID string
	err := p.pool.QueryRow(ctx, `
		SELECT id, created_at, stars, excitement
		FROM entries
		WHERE viewer_id = $1 AND session_id = $2
	`, viewerID.String(), sessionID.String()).Scan(&rawID, &entry.CreatedAt, &entry.Stars, &entry.Excitement)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Entry{}, spoiler.ErrNotFound
	}
	if err != nil {
		return models.Entry{}, err
	}

	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return models.Entry{}, fmt.Errorf("malformed entry id %q: %w", rawID, err)
	}
	entry.ID = parsed
	return entry, nil
}

// GetEngagementStats aggregates entries per session with one query.
func (p *PostgresStore) GetEngagementStats(ctx context.Context, sessionIDs []uuid.UUID) (map[uuid.UUID]models.EngagementStats, error) {
	if len(sessionIDs) == 0 {
		return map[uuid.UUID]models.EngagementStats{}, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT session_id, COUNT(*), AVG(excitement)::float8
		FROM entries
		WHERE session_id = ANY($1)
		GROUP BY session_id
	`, uuidStrings(sessionIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]models.EngagementStats, len(sessionIDs))
	for rows.Next() {
		var (
			rawID string
			stats models.EngagementStats
		)
		if err := rows.Scan(&rawID, &stats.LogCount, &stats.AvgExcitement); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("malformed session id %q: %w", rawID, err)
		}
		out[id] = stats
	}
	return out, rows.Err()
}

// uuidStrings converts ids for ANY($n) parameters; pg casts text[] to
// uuid[] on comparison.
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
