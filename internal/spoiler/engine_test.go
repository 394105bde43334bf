package spoiler_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridlog/gridlog/internal/models"
	"github.com/gridlog/gridlog/internal/spoiler"
)

// fakeStore is an in-memory spoiler.Store. The mutex makes
// InsertEntryIfAbsent behave like the database uniqueness constraint:
// concurrent creates for the same pair resolve to one surviving entry
// and the loser observes inserted=false.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.Session
	viewers  map[uuid.UUID]*models.Viewer
	entries  map[[2]uuid.UUID]models.Entry
	stats    map[uuid.UUID]models.EngagementStats

	hasEntryCalls   int
	hasEntriesCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[uuid.UUID]*models.Session{},
		viewers:  map[uuid.UUID]*models.Viewer{},
		entries:  map[[2]uuid.UUID]models.Entry{},
		stats:    map[uuid.UUID]models.EngagementStats{},
	}
}

func (f *fakeStore) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, spoiler.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) GetSessions(_ context.Context, ids []uuid.UUID) ([]*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Session
	for _, id := range ids {
		if s, ok := f.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetViewer(_ context.Context, id uuid.UUID) (*models.Viewer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.viewers[id]
	if !ok {
		return nil, spoiler.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) HasEntry(_ context.Context, viewerID, sessionID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasEntryCalls++
	_, ok := f.entries[[2]uuid.UUID{viewerID, sessionID}]
	return ok, nil
}

func (f *fakeStore) HasEntries(_ context.Context, viewerID uuid.UUID, sessionIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasEntriesCalls++
	out := map[uuid.UUID]bool{}
	for _, id := range sessionIDs {
		if _, ok := f.entries[[2]uuid.UUID{viewerID, id}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeStore) InsertEntryIfAbsent(_ context.Context, viewerID, sessionID uuid.UUID) (models.Entry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]uuid.UUID{viewerID, sessionID}
	if existing, ok := f.entries[key]; ok {
		return existing, false, nil
	}
	entry := models.Entry{
		ID:        uuid.New(),
		ViewerID:  viewerID,
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
	}
	f.entries[key] = entry
	return entry, true, nil
}

func (f *fakeStore) GetEngagementStats(_ context.Context, sessionIDs []uuid.UUID) (map[uuid.UUID]models.EngagementStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uuid.UUID]models.EngagementStats{}
	for _, id := range sessionIDs {
		if s, ok := f.stats[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func intp(v int) *int { return &v }

// seedSession installs a race with positions [3, 1, DNF, 2]; the DNF row
// carries the fastest lap to prove fastest-lap is independent of
// finishing position.
func seedSession(f *fakeStore) *models.Session {
	s := &models.Session{
		ID:       uuid.New(),
		Name:     "Grand Prix of Jeddah",
		Venue:    "Jeddah Corniche Circuit",
		Round:    2,
		Season:   2026,
		StartsAt: time.Date(2026, 3, 8, 17, 0, 0, 0, time.UTC),
		Results: []models.ResultRow{
			{Position: intp(3), Driver: "Sainz", Team: "Williams", Status: models.StatusFinished},
			{Position: intp(1), Driver: "Verstappen", Team: "Red Bull", Status: models.StatusFinished},
			{Driver: "Alonso", Team: "Aston Martin", Status: models.StatusDNF, FastestLap: true},
			{Position: intp(2), Driver: "Norris", Team: "McLaren", Status: models.StatusFinished},
		},
	}
	f.sessions[s.ID] = s
	f.stats[s.ID] = models.EngagementStats{LogCount: 12, AvgExcitement: floatp(7.5)}
	return s
}

func floatp(v float64) *float64 { return &v }

func seedViewer(f *fakeStore, pref models.SpoilerPreference) uuid.UUID {
	v := &models.Viewer{ID: uuid.New(), Handle: "casual", Preference: pref}
	f.viewers[v.ID] = v
	return v.ID
}

func TestSessionDetail_HiddenForStrictWithoutEntry(t *testing.T) {
	st := newFakeStore()
	session := seedSession(st)
	viewerID := seedViewer(st, models.PreferenceStrict)
	engine := spoiler.NewEngine(st, nil)

	detail, err := engine.SessionDetail(context.Background(), session.ID, &viewerID, false)
	require.NoError(t, err)

	assert.Equal(t, models.VisibilityHidden, detail.Visibility)
	assert.False(t, detail.HasEntry)
	assert.Nil(t, detail.Stats)
	assert.Nil(t, detail.Result)
	// Metadata is never spoiler-bearing and always present.
	assert.Equal(t, session.Name, detail.Name)
}

func TestSessionDetail_AnonymousAlwaysHidden(t *testing.T) {
	st := newFakeStore()
	session := seedSession(st)
	engine := spoiler.NewEngine(st, nil)

	detail, err := engine.SessionDetail(context.Background(), session.ID, nil, false)
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityHidden, detail.Visibility)
	assert.Nil(t, detail.Result)
}

func TestSessionDetail_PartialNeverLeaksIdentity(t *testing.T) {
	st := newFakeStore()
	session := seedSession(st)
	viewerID := seedViewer(st, models.PreferenceModerate)
	engine := spoiler.NewEngine(st, nil)

	detail, err := engine.SessionDetail(context.Background(), session.ID, &viewerID, false)
	require.NoError(t, err)

	assert.Equal(t, models.VisibilityPartial, detail.Visibility)
	require.NotNil(t, detail.Stats)
	assert.Equal(t, 3, detail.Stats.Finishers)
	assert.Equal(t, 1, detail.Stats.NonFinishers)
	assert.Equal(t, int64(12), detail.Stats.LogCount)
	assert.Nil(t, detail.Result)

	// Property check: the serialized partial payload carries no driver,
	// team or position identifier from the result set.
	b, err := json.Marshal(detail)
	require.NoError(t, err)
	payload := string(b)
	for _, row := range session.Results {
		assert.NotContains(t, payload, row.Driver)
		assert.NotContains(t, payload, row.Team)
	}
	assert.NotContains(t, payload, `"classification"`)
	assert.NotContains(t, payload, `"winner"`)
}

func TestSessionDetail_PartialIsStrictFieldSubsetOfFull(t *testing.T) {
	st := newFakeStore()
	session := seedSession(st)
	moderate := seedViewer(st, models.PreferenceModerate)
	optOut := seedViewer(st, models.PreferenceNone)
	engine := spoiler.NewEngine(st, nil)

	partial, err := engine.SessionDetail(context.Background(), session.ID, &moderate, false)
	require.NoError(t, err)
	full, err := engine.SessionDetail(context.Background(), session.ID, &optOut, false)
	require.NoError(t, err)

	partialFields := topLevelFields(t, partial)
	fullFields := topLevelFields(t, full)

	for f := range partialFields {
		if f == "visibility" {
			continue
		}
		assert.Contains(t, fullFields, f)
	}
	assert.Contains(t, fullFields, "result")
	assert.NotContains(t, partialFields, "result")
}

func topLevelFields(t *testing.T, v interface{}) map[string]struct{} {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &m))
	out := map[string]struct{}{}
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

func TestSessionDetail_FullClassificationOrdering(t *testing.T) {
	st := newFakeStore()
	session := seedSession(st)
	viewerID := seedViewer(st, models.PreferenceNone)
	engine := spoiler.NewEngine(st, nil)

	detail, err := engine.SessionDetail(context.Background(), session.ID, &viewerID, false)
	require.NoError(t, err)

	assert.Equal(t, models.VisibilityFull, detail.Visibility)
	require.NotNil(t, detail.Result)

	drivers := make([]string, 0, len(detail.Result.Classification))
	for _, row := range detail.Result.Classification {
		drivers = append(drivers, row.Driver)
	}
	// Positions [3, 1, DNF, 2] sort to [1, 2, 3, DNF].
	assert.Equal(t, []string{"Verstappen", "Norris", "Sainz", "Alonso"}, drivers)

	require.NotNil(t, detail.Result.Winner)
	assert.Equal(t, "Verstappen", detail.Result.Winner.Driver)
	require.NotNil(t, detail.Result.FastestLap)
	assert.Equal(t, "Alonso", detail.Result.FastestLap.Driver)
}

func TestSessionDetail_UnpositionedKeepInputOrder(t *testing.T) {
	st := newFakeStore()
	s := &models.Session{
		ID:       uuid.New(),
		Name:     "Sprint",
		StartsAt: time.Now().UTC(),
		Results: []models.ResultRow{
			{Driver: "First DNF", Status: models.StatusDNF},
			{Position: intp(1), Driver: "P1", Status: models.StatusFinished},
			{Driver: "Second DNF", Status: models.StatusDNS},
		},
	}
	st.sessions[s.ID] = s
	viewerID := seedViewer(st, models.PreferenceNone)
	engine := spoiler.NewEngine(st, nil)

	detail, err := engine.SessionDetail(context.Background(), s.ID, &viewerID, false)
	require.NoError(t, err)

	drivers := make([]string, 0, 3)
	for _, row := range detail.Result.Classification {
		drivers = append(drivers, row.Driver)
	}
	assert.Equal(t, []string{"P1", "First DNF", "Second DNF"}, drivers)
}

func TestSessionDetail_NoWinnerWhenNobodyClassified(t *testing.T) {
	st := newFakeStore()
	s := &models.Session{
		ID:       uuid.New(),
		Name:     "Red-flagged",
		StartsAt: time.Now().UTC(),
		Results: []models.ResultRow{
			{Driver: "A", Status: models.StatusDNF},
			{Driver: "B", Status: models.StatusDNF},
		},
	}
	st.sessions[s.ID] = s
	viewerID := seedViewer(st, models.PreferenceNone)
	engine := spoiler.NewEngine(st, nil)

	detail, err := engine.SessionDetail(context.Background(), s.ID, &viewerID, false)
	require.NoError(t, err)
	assert.Nil(t, detail.Result.Winner)
}

func TestSessionDetail_ForceRevealOverridesPolicy(t *testing.T) {
	st := newFakeStore()
	session := seedSession(st)
	engine := spoiler.NewEngine(st, nil)

	// Anonymous deep link with explicit force: full for this response,
	// nothing persisted.
	detail, err := engine.SessionDetail(context.Background(), session.ID, nil, true)
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityFull, detail.Visibility)
	require.NotNil(t, detail.Result)
	assert.Empty(t, st.entries)
}

func TestSessionDetail_NotFound(t *testing.T) {
	st := newFakeStore()
	engine := spoiler.NewEngine(st, nil)

	_, err := engine.SessionDetail(context.Background(), uuid.New(), nil, false)
	assert.ErrorIs(t, err, spoiler.ErrNotFound)
}

func TestSessionDetail_UnknownViewerNotFound(t *testing.T) {
	st := newFakeStore()
	session := seedSession(st)
	engine := spoiler.NewEngine(st, nil)

	ghost := uuid.New()
	_, err := engine.SessionDetail(context.Background(), session.ID, &ghost, false)
	assert.ErrorIs(t, err, spoiler.ErrNotFound)
}

func TestBatchSummaries_PreservesOrderAndDropsUnknown(t *testing.T) {
	st := newFakeStore()
	s1 := seedSession(st)
	s2 := seedSession(st)
	viewerID := seedViewer(st, models.PreferenceStrict)
	engine := spoiler.NewEngine(st, nil)

	unknown := uuid.New()
	out, err := engine.BatchSummaries(context.Background(), []uuid.UUID{s2.ID, unknown, s1.ID}, &viewerID)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, s2.ID, out[0].ID)
	assert.Equal(t, s1.ID, out[1].ID)
}

func TestBatchSummaries_SingleExistenceQuery(t *testing.T) {
	st := newFakeStore()
	s1 := seedSession(st)
	s2 := seedSession(st)
	s3 := seedSession(st)
	viewerID := seedViewer(st, models.PreferenceStrict)
	st.entries[[2]uuid.UUID{viewerID, s2.ID}] = models.Entry{ID: uuid.New()}
	engine := spoiler.NewEngine(st, nil)

	out, err := engine.BatchSummaries(context.Background(), []uuid.UUID{s1.ID, s2.ID, s3.ID}, &viewerID)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, 1, st.hasEntriesCalls)
	assert.Zero(t, st.hasEntryCalls)

	assert.Equal(t, models.VisibilityHidden, out[0].Visibility)
	assert.Equal(t, models.VisibilityFull, out[1].Visibility)
	assert.True(t, out[1].HasEntry)
	require.NotNil(t, out[1].Winner)
	assert.Equal(t, "Verstappen", out[1].Winner.Driver)
	assert.Equal(t, "Alonso", out[1].FastestLapDriver)
	assert.Equal(t, models.VisibilityHidden, out[2].Visibility)
}

func TestBatchSummaries_HiddenSummariesCarryNoOutcome(t *testing.T) {
	st := newFakeStore()
	session := seedSession(st)
	engine := spoiler.NewEngine(st, nil)

	out, err := engine.BatchSummaries(context.Background(), []uuid.UUID{session.ID}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)

	b, err := json.Marshal(out[0])
	require.NoError(t, err)
	for _, row := range session.Results {
		assert.False(t, strings.Contains(string(b), row.Driver), "hidden summary leaked %q", row.Driver)
	}
}
