// Package session holds the per-session mutable state the facade owns:
// the quarantine flag, the agent-loop step counter and cumulative risk,
// and the head of the signed integrity chain. The rate buckets,
// denial-of-wallet counters, and read-data fingerprints the data model
// also assigns to SessionState live inside the validator instance the
// facade constructs per session; both are reachable only through the
// facade's operations.
package session

import (
	"time"

	"github.com/google/uuid"
)

// State is one session's mutable guard state. It is created with the
// facade, mutated only through its operations, and discarded with it.
type State struct {
	ID              string
	Quarantined     bool
	StepCount       int
	CumulativeRisk  float64
	SignedChainHead string
	CreatedAt       time.Time
}

// New creates a State with a fresh session ID.
func New() *State {
	return &State{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
}

// NewWithID creates a State bound to a caller-supplied session ID, for
// hosts that already track their own session identifiers.
func NewWithID(id string) *State {
	if id == "" {
		return New()
	}
	return &State{ID: id, CreatedAt: time.Now().UTC()}
}
