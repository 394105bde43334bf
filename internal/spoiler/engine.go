// Package spoiler is the visibility-decision core: it is the single
// authority deciding, per viewer and per session, whether outcome data
// may be disclosed, and it owns the masking applied on the way out.
package spoiler

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gridlog/gridlog/internal/cache"
	"github.com/gridlog/gridlog/internal/models"
)

// Engine orchestrates policy evaluation, data fetch, masking and the
// response cache. All read paths that expose session results go through
// it; nothing else in the service may touch result rows.
type Engine struct {
	store Store
	cache *cache.ResponseCache
}

// NewEngine builds an engine over the given store. rc may be nil, in
// which case every read recomputes from the store.
func NewEngine(store Store, rc *cache.ResponseCache) *Engine {
	return &Engine{store: store, cache: rc}
}

// viewerKey is the cache fingerprint component for an optional identity.
func viewerKey(viewerID *uuid.UUID) string {
	if viewerID == nil {
		return cache.AnonViewerKey
	}
	return viewerID.String()
}

// SessionDetail produces the masked detail payload for one session.
// viewerID nil means anonymous. forceFull maps this response to full
// visibility without persisting anything; it is fingerprinted separately
// so it can never poison the caller's normal cache entry.
//
// Errors: ErrNotFound when the session or viewer does not exist,
// ErrUnavailable when the store is unreachable.
func (e *Engine) SessionDetail(ctx context.Context, sessionID uuid.UUID, viewerID *uuid.UUID, forceFull bool) (*models.SessionDetailResponse, error) {
	vk := viewerKey(viewerID)
	key := cache.DetailKey(sessionID, vk, forceFull)

	if b, ok := e.cache.Get(ctx, key); ok {
		var resp models.SessionDetailResponse
		if err := json.Unmarshal(b, &resp); err == nil {
			return &resp, nil
		}
		log.Warn().Str("key", key).Msg("undecodable cached detail, recomputing")
	}

	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var viewer *models.Viewer
	hasEntry := false
	if viewerID != nil {
		viewer, err = e.store.GetViewer(ctx, *viewerID)
		if err != nil {
			return nil, err
		}
		hasEntry, err = e.store.HasEntry(ctx, *viewerID, sessionID)
		if err != nil {
			return nil, err
		}
	}

	level := DecideForViewer(viewer, hasEntry)
	if forceFull {
		level = models.VisibilityFull
	}

	var stats *models.PartialStats
	if level != models.VisibilityHidden {
		engagement, err := e.store.GetEngagementStats(ctx, []uuid.UUID{sessionID})
		if err != nil {
			return nil, err
		}
		stats = partialStats(session, engagement[sessionID])
	}

	resp := buildDetail(session, level, hasEntry, stats)

	if b, err := json.Marshal(resp); err == nil {
		scoped := viewerID != nil || forceFull
		e.cache.Set(ctx, key, b, e.cache.TTLFor(scoped, session.StartsAt))
	}
	return resp, nil
}

// BatchSummaries produces one masked summary per input id, preserving
// input order. Ids that do not resolve to a session are dropped, never
// an error. Entry existence for the whole batch is resolved with a
// single store query.
func (e *Engine) BatchSummaries(ctx context.Context, sessionIDs []uuid.UUID, viewerID *uuid.UUID) ([]models.SessionSummaryResponse, error) {
	vk := viewerKey(viewerID)
	key := cache.SummaryKey(sessionIDs, vk)

	if b, ok := e.cache.Get(ctx, key); ok {
		var resp []models.SessionSummaryResponse
		if err := json.Unmarshal(b, &resp); err == nil {
			return resp, nil
		}
		log.Warn().Str("key", key).Msg("undecodable cached summaries, recomputing")
	}

	sessions, err := e.store.GetSessions(ctx, sessionIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.Session, len(sessions))
	found := make([]uuid.UUID, 0, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
		found = append(found, s.ID)
	}

	var viewer *models.Viewer
	entries := map[uuid.UUID]bool{}
	if viewerID != nil {
		viewer, err = e.store.GetViewer(ctx, *viewerID)
		if err != nil {
			return nil, err
		}
		entries, err = e.store.HasEntries(ctx, *viewerID, found)
		if err != nil {
			return nil, err
		}
	}

	engagement, err := e.store.GetEngagementStats(ctx, found)
	if err != nil {
		return nil, err
	}

	out := make([]models.SessionSummaryResponse, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		session, ok := byID[id]
		if !ok {
			continue
		}
		hasEntry := entries[id]
		level := DecideForViewer(viewer, hasEntry)
		out = append(out, buildSummary(session, level, hasEntry, engagement[id]))
	}

	if b, err := json.Marshal(out); err == nil {
		e.cache.Set(ctx, key, b, e.cache.TTLFor(viewerID != nil, newestStart(sessions)))
	}
	return out, nil
}

// buildDetail assembles the detail payload for a resolved visibility
// level. Session metadata is never spoiler-bearing and is always
// present; the stats and result blocks are strictly additive per level.
func buildDetail(session *models.Session, level models.Visibility, hasEntry bool, stats *models.PartialStats) *models.SessionDetailResponse {
	resp := &models.SessionDetailResponse{
		ID:         session.ID,
		Name:       session.Name,
		Venue:      session.Venue,
		Round:      session.Round,
		Season:     session.Season,
		StartsAt:   session.StartsAt,
		Visibility: level,
		HasEntry:   hasEntry,
	}

	switch level {
	case models.VisibilityHidden:
	case models.VisibilityPartial:
		resp.Stats = stats
	case models.VisibilityFull:
		resp.Stats = stats
		resp.Result = resultBlock(session.Results)
	}
	return resp
}

// buildSummary is the batch counterpart of buildDetail: same masking
// rules, lighter full block (winner and fastest-lap driver only).
func buildSummary(session *models.Session, level models.Visibility, hasEntry bool, engagement models.EngagementStats) models.SessionSummaryResponse {
	resp := models.SessionSummaryResponse{
		ID:         session.ID,
		Name:       session.Name,
		Venue:      session.Venue,
		Round:      session.Round,
		Season:     session.Season,
		StartsAt:   session.StartsAt,
		Visibility: level,
		HasEntry:   hasEntry,
	}

	switch level {
	case models.VisibilityHidden:
	case models.VisibilityPartial:
		resp.Stats = partialStats(session, engagement)
	case models.VisibilityFull:
		resp.Stats = partialStats(session, engagement)
		block := resultBlock(session.Results)
		resp.Winner = block.Winner
		if block.FastestLap != nil {
			resp.FastestLapDriver = block.FastestLap.Driver
		}
	}
	return resp
}

// partialStats derives the spoiler-safe aggregate block. Finisher counts
// come from the result rows; engagement aggregates from entries. Nothing
// here may identify a competitor or imply an ordering.
func partialStats(session *models.Session, engagement models.EngagementStats) *models.PartialStats {
	finishers := 0
	for _, row := range session.Results {
		if row.Position != nil {
			finishers++
		}
	}
	return &models.PartialStats{
		Finishers:     finishers,
		NonFinishers:  len(session.Results) - finishers,
		LogCount:      engagement.LogCount,
		AvgExcitement: engagement.AvgExcitement,
	}
}

// resultBlock sorts the classification and derives winner and fastest
// lap. Positioned rows sort ascending; unpositioned rows (DNF/DNS/DSQ/NC)
// follow in their original relative order, which is why the sort must be
// stable.
func resultBlock(results []models.ResultRow) *models.ResultBlock {
	sorted := make([]models.ResultRow, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Position, sorted[j].Position
		switch {
		case a != nil && b != nil:
			return *a < *b
		case a != nil:
			return true
		default:
			return false
		}
	})

	block := &models.ResultBlock{Classification: sorted}
	if len(sorted) > 0 && sorted[0].Position != nil {
		block.Winner = &sorted[0]
	}
	for i := range sorted {
		if sorted[i].FastestLap {
			block.FastestLap = &sorted[i]
			break
		}
	}
	return block
}

// newestStart returns the most recent start time in the batch, used to
// pick the anonymous TTL class: one live session in the batch keeps the
// whole payload on the short TTL.
func newestStart(sessions []*models.Session) (newest time.Time) {
	for _, s := range sessions {
		if s.StartsAt.After(newest) {
			newest = s.StartsAt
		}
	}
	return newest
}
