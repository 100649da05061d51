// Package cooldown rate-limits verification attempts after a wrong answer.
//
// The policy is a rolling 60-second gate: a wrong answer stamps the clock,
// and no attempt is permitted until a full window has passed since the most
// recent stamp. There are no hidden counters, no exponential backoff, and
// no permanent lockout here; harder limits belong to policy thresholds.
package cooldown

import "time"

// Window is how long a user waits after a wrong answer.
const Window = 60 * time.Second

// State is the per-user cooldown record. The zero value permits an attempt
// immediately. It serializes to JSON so it can live in the session store.
type State struct {
	// LastFailure is when the most recent wrong answer was recorded. The
	// zero time means no failure has happened yet.
	LastFailure time.Time `json:"lastFailure"`
}

// RecordFailure stamps the state with now. Calling it again restarts the
// window from the later stamp.
func (s *State) RecordFailure(now time.Time) {
	s.LastFailure = now
}

// Permitted reports whether an attempt may proceed at the given time. It is
// a pure function of now and the last failure stamp.
func (s State) Permitted(now time.Time) bool {
	if s.LastFailure.IsZero() {
		return true
	}
	return now.Sub(s.LastFailure) >= Window
}

// Remaining returns how long until the next attempt is allowed, clamped at
// zero. Display-only; Permitted is the authority.
func (s State) Remaining(now time.Time) time.Duration {
	if s.LastFailure.IsZero() {
		return 0
	}

	remaining := Window - now.Sub(s.LastFailure)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingSeconds is Remaining rounded up to whole seconds, for messages
// like "try again in 42s". A nonzero remainder never rounds down to zero.
func (s State) RemainingSeconds(now time.Time) int {
	remaining := s.Remaining(now)
	if remaining == 0 {
		return 0
	}

	secs := int((remaining + time.Second - 1) / time.Second)
	return secs
}
