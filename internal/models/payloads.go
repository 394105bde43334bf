package models

import (
	"time"

	"github.com/google/uuid"
)

// PartialStats is the spoiler-safe aggregate block disclosed at partial
// visibility. It must never carry anything that identifies a competitor
// or a finishing order, even derived (a count of one is still a leak).
type PartialStats struct {
	Finishers     int      `json:"finishers"`
	NonFinishers  int      `json:"non_finishers"`
	LogCount      int64    `json:"log_count"`
	AvgExcitement *float64 `json:"avg_excitement,omitempty"`
}

// ResultBlock is the full-visibility outcome of a session: the sorted
// classification plus the derived winner and fastest-lap holder.
type ResultBlock struct {
	Classification []ResultRow `json:"classification"`
	Winner         *ResultRow  `json:"winner,omitempty"`
	FastestLap     *ResultRow  `json:"fastest_lap,omitempty"`
}

// SessionDetailResponse is returned by GET /sessions/:id. Visibility and
// HasEntry are always present so the client renders masked state from the
// payload instead of inferring it from absent fields.
type SessionDetailResponse struct {
	ID         uuid.UUID     `json:"id"`
	Name       string        `json:"name"`
	Venue      string        `json:"venue"`
	Round      int           `json:"round"`
	Season     int           `json:"season"`
	StartsAt   time.Time     `json:"starts_at"`
	Visibility Visibility    `json:"visibility"`
	HasEntry   bool          `json:"has_entry"`
	Stats      *PartialStats `json:"stats,omitempty"`
	Result     *ResultBlock  `json:"result,omitempty"`
}

// SessionSummaryResponse is one element of the batch summary payload.
// Winner and FastestLapDriver are only set at full visibility.
type SessionSummaryResponse struct {
	ID               uuid.UUID     `json:"id"`
	Name             string        `json:"name"`
	Venue            string        `json:"venue"`
	Round            int           `json:"round"`
	Season           int           `json:"season"`
	StartsAt         time.Time     `json:"starts_at"`
	Visibility       Visibility    `json:"visibility"`
	HasEntry         bool          `json:"has_entry"`
	Stats            *PartialStats `json:"stats,omitempty"`
	Winner           *ResultRow    `json:"winner,omitempty"`
	FastestLapDriver string        `json:"fastest_lap_driver,omitempty"`
}

// RevealResponse is returned by POST /sessions/:id/reveal.
// AlreadyLogged reports idempotent success: the entry existed before
// this call (a prior reveal or a normal rating).
type RevealResponse struct {
	Revealed      bool                   `json:"revealed"`
	AlreadyLogged bool                   `json:"already_logged"`
	Session       *SessionDetailResponse `json:"session,omitempty"`
}

// EntryUpsertRequest is the POST /sessions/:id/entries payload.
// Stars are half-star increments in [0.5, 5]; excitement is 1–10.
type EntryUpsertRequest struct {
	Stars      *float64 `json:"stars,omitempty"`
	Excitement *int     `json:"excitement,omitempty"`
}

// EntryUpsertResponse is returned by POST /sessions/:id/entries.
type EntryUpsertResponse struct {
	Entry     Entry `json:"entry"`
	Duplicate bool  `json:"duplicate"`
}
