package models

import (
	"time"

	"github.com/google/uuid"
)

// SpoilerPreference is a viewer's account-level spoiler setting.
// The set is closed; consumers must switch exhaustively so a new
// preference is a compile-visible change.
type SpoilerPreference string

const (
	// PreferenceStrict hides all outcome data until the viewer has an entry.
	PreferenceStrict = SpoilerPreference("strict")
	// PreferenceModerate exposes spoiler-safe aggregates without an entry,
	// full results with one.
	PreferenceModerate = SpoilerPreference("moderate")
	// PreferenceNone opts out of spoiler protection entirely.
	PreferenceNone = SpoilerPreference("none")
)

// Valid reports whether p is one of the known preferences.
func (p SpoilerPreference) Valid() bool {
	switch p {
	case PreferenceStrict, PreferenceModerate, PreferenceNone:
		return true
	}
	return false
}

// Visibility is the resolved disclosure level for a (viewer, session) pair.
// It is computed per request and never persisted.
type Visibility string

const (
	// VisibilityHidden discloses session metadata only.
	VisibilityHidden = Visibility("hidden")
	// VisibilityPartial additionally discloses aggregate, non-identifying stats.
	VisibilityPartial = Visibility("partial")
	// VisibilityFull discloses the complete classification.
	VisibilityFull = Visibility("full")
)

// Viewer is an authenticated user. Owned by the identity collaborator;
// read-only here.
type Viewer struct {
	ID         uuid.UUID
	Handle     string
	Preference SpoilerPreference
}

// ResultStatus classifies how a competitor's session ended.
type ResultStatus string

const (
	StatusFinished      = ResultStatus("finished")
	StatusDNF           = ResultStatus("dnf")
	StatusDNS           = ResultStatus("dns")
	StatusDisqualified  = ResultStatus("dsq")
	StatusNotClassified = ResultStatus("nc")
)

// ResultRow is one competitor's outcome in a session's classification.
// Position is nil for non-finishers (DNF/DNS/DSQ/NC).
type ResultRow struct {
	Position   *int         `json:"position"`
	Driver     string       `json:"driver"`
	Team       string       `json:"team"`
	Status     ResultStatus `json:"status"`
	FastestLap bool         `json:"fastest_lap"`
	TimeText   string       `json:"time_text,omitempty"`
}

// Session is a viewable motorsport event (race, sprint, qualifying).
// Owned by the ingestion collaborator; read-only here. Results are kept
// in ingestion order so unpositioned rows retain a stable relative order.
type Session struct {
	ID       uuid.UUID   `json:"id"`
	Name     string      `json:"name"`
	Venue    string      `json:"venue"`
	Round    int         `json:"round"`
	Season   int         `json:"season"`
	StartsAt time.Time   `json:"starts_at"`
	Results  []ResultRow `json:"-"`
}

// Entry records that a viewer has engaged with a session, either by
// rating it or by revealing it. Rating fields are nil on a bare reveal
// entry and may be filled in later.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	ViewerID   uuid.UUID `json:"viewer_id"`
	SessionID  uuid.UUID `json:"session_id"`
	CreatedAt  time.Time `json:"created_at"`
	Stars      *float64  `json:"stars,omitempty"`
	Excitement *int      `json:"excitement,omitempty"`
}

// EngagementStats are spoiler-safe aggregates over a session's entries.
type EngagementStats struct {
	LogCount      int64    `json:"log_count"`
	AvgExcitement *float64 `json:"avg_excitement,omitempty"`
}
