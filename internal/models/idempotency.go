package models

import (
	"encoding/json"
	"time"
)

// IdempotencyState distinguishes a reservation from a finished response.
type IdempotencyState string

const (
	IdempotencyInFlight IdempotencyState = "in_flight"
	IdempotencyDone     IdempotencyState = "done"
)

// IdempotencyEntry is the value stored under a client idempotency key.
// Body holds the exact bytes sent to the client so replays are identical.
type IdempotencyEntry struct {
	State      IdempotencyState `json:"state"`
	StatusCode int              `json:"status_code,omitempty"`
	Body       json.RawMessage  `json:"body,omitempty"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// Expired reports whether the entry is past its logical expiry at now.
func (e *IdempotencyEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Replayable reports whether the entry holds a stored response that is
// still valid at now.
func (e *IdempotencyEntry) Replayable(now time.Time) bool {
	return e != nil && e.State == IdempotencyDone && !e.Expired(now)
}
