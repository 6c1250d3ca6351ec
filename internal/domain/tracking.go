// Package domain contains the core data types for the hattakip bot backend.
// This package has zero external dependencies and is imported by every other
// internal package (repo, service, handler, transit).
package domain

import "time"

// Tracking limits and windows. These mirror the behaviour users already rely
// on: a short-lived confirmation token, a hard per-chat session cap, and an
// advisory worker lock that goes stale quickly.
const (
	// RequestTTL is how long a tracking request token stays redeemable.
	RequestTTL = 60 * time.Second

	// MaxConcurrentSessions is the per-chat cap on active tracking sessions.
	// Starting a session beyond the cap evicts the oldest one.
	MaxConcurrentSessions = 3

	// LockFreshness is the window during which a worker lock is considered
	// proof of a live tracking loop. Older locks are treated as stale.
	LockFreshness = 5 * time.Second
)

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteAlternative is one boarding option decoded from the municipal route
// planner's response: which line to take, where to board, where to get off.
// Coordinate fields are nil when the upstream segment string carried none.
type RouteAlternative struct {
	// Solution is the upstream's label for this alternative ("1", "2", ...).
	Solution string

	LineCode    string // matching key used against live stop data
	LineDisplay string // human-facing line number, e.g. "22-M"
	LineName    string // descriptive line name

	StopID     string // boarding stop, numeric upstream id
	StopName   string
	StopCoords *Coordinates

	DestStopID   string
	DestStopName string
	DestCoords   *Coordinates
}

// LiveETA is the live snapshot computed for a route alternative when it is
// presented: countdown minutes and the coarse vehicle visibility status.
type LiveETA struct {
	Minutes *int   // nil when upstream reports no countdown
	Status  string // canonical "VAR"/"YOK", or raw upstream value
	Text    string // compact one-line summary for display
}

// TrackingRequest is the ephemeral handoff record between presenting a route
// alternative and the user confirming tracking. It lives at most RequestTTL
// and is consumed (deleted) the moment tracking starts.
type TrackingRequest struct {
	Token string `json:"-"`

	LineCode    string `json:"line_code"`
	LineDisplay string `json:"line_display"`
	LineName    string `json:"line_name"`

	StopID     string       `json:"stop_id"`
	StopName   string       `json:"stop_name"`
	StopCoords *Coordinates `json:"stop_coords,omitempty"`

	DestStopID   string       `json:"dest_stop_id"`
	DestStopName string       `json:"dest_stop_name"`
	DestCoords   *Coordinates `json:"dest_coords,omitempty"`

	// Last known live data at request creation time, shown in the first
	// tracking message before the loop produces its own readings.
	Minutes *int   `json:"minutes,omitempty"`
	Status  string `json:"status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ExpiredAt reports whether the request is older than RequestTTL at the
// given instant.
func (r TrackingRequest) ExpiredAt(now time.Time) bool {
	return now.Sub(r.CreatedAt) > RequestTTL
}

// SessionStatusRunning is the only persisted session status. Terminated
// sessions have no persisted representation; termination is observed as
// absence of the record.
const SessionStatusRunning = "running"

// TrackingSession is one live tracking of a line at a stop for a chat.
// Sessions are persisted per chat (all of a chat's sessions in one record)
// and every actor re-reads them from storage; nothing holds a session in
// memory across the request/worker boundary.
type TrackingSession struct {
	Token     string `json:"token"`
	ChatID    int64  `json:"chat_id"`
	MessageID int    `json:"message_id"` // the live-edited status message

	LineCode    string `json:"line_code"`
	LineDisplay string `json:"line_display"`
	LineName    string `json:"line_name"`

	StopID       string `json:"stop_id"`
	StopName     string `json:"stop_name"`
	DestStopName string `json:"dest_stop_name"`

	StartedAt time.Time `json:"started_at"`
	Status    string    `json:"status"`
}

// WorkerLock is the advisory marker that a tracking loop for a token is
// believed to be running. It is not a true mutex: duplicate loops are
// possible under races and must be tolerated by idempotent loop iterations.
type WorkerLock struct {
	Token    string
	LockedAt time.Time
}

// FreshAt reports whether the lock still counts as proof of a live worker
// at the given instant.
func (l WorkerLock) FreshAt(now time.Time) bool {
	return now.Sub(l.LockedAt) < LockFreshness
}
