package cooldown

import (
	"testing"
	"time"
)

func TestZeroValuePermits(t *testing.T) {
	var s State

	now := time.Now()
	if !s.Permitted(now) {
		t.Error("zero-value state should permit an attempt")
	}
	if got := s.Remaining(now); got != 0 {
		t.Errorf("zero-value state should have no remaining wait, got %v", got)
	}
}

func TestWindowBoundary(t *testing.T) {
	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	var s State
	s.RecordFailure(base)

	for _, tt := range []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{name: "immediately after failure", elapsed: 0, want: false},
		{name: "one second in", elapsed: time.Second, want: false},
		{name: "one nanosecond short", elapsed: Window - time.Nanosecond, want: false},
		{name: "exactly at the window", elapsed: Window, want: true},
		{name: "well past the window", elapsed: 5 * time.Minute, want: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			now := base.Add(tt.elapsed)
			if got := s.Permitted(now); got != tt.want {
				t.Errorf("Permitted at +%v = %v, want %v", tt.elapsed, got, tt.want)
			}
		})
	}

	// Sweep every second of the window: never permitted strictly inside it.
	for sec := 1; sec < 60; sec++ {
		if s.Permitted(base.Add(time.Duration(sec) * time.Second)) {
			t.Errorf("attempt permitted %ds after failure, inside the window", sec)
		}
	}
}

func TestRemainingTicksToZero(t *testing.T) {
	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	var s State
	s.RecordFailure(base)

	if got := s.Remaining(base); got != Window {
		t.Errorf("remaining right after failure = %v, want %v", got, Window)
	}

	if got := s.Remaining(base.Add(45 * time.Second)); got != 15*time.Second {
		t.Errorf("remaining at +45s = %v, want 15s", got)
	}

	if got := s.Remaining(base.Add(Window)); got != 0 {
		t.Errorf("remaining at the window edge = %v, want 0", got)
	}
	if !s.Permitted(base.Add(Window)) {
		t.Error("attempt must be allowed the moment remaining hits zero")
	}

	if got := s.Remaining(base.Add(2 * Window)); got != 0 {
		t.Errorf("remaining past the window = %v, want 0", got)
	}
}

func TestRemainingSecondsRoundsUp(t *testing.T) {
	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	var s State
	s.RecordFailure(base)

	if got := s.RemainingSeconds(base.Add(59*time.Second + 500*time.Millisecond)); got != 1 {
		t.Errorf("half a second left should display as 1s, got %d", got)
	}
	if got := s.RemainingSeconds(base.Add(Window)); got != 0 {
		t.Errorf("expired cooldown should display as 0s, got %d", got)
	}
}

func TestRepeatFailureRestartsWindow(t *testing.T) {
	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	var s State
	s.RecordFailure(base)
	s.RecordFailure(base.Add(30 * time.Second))

	if s.Permitted(base.Add(Window)) {
		t.Error("window should restart from the second failure")
	}
	if !s.Permitted(base.Add(30*time.Second + Window)) {
		t.Error("window should expire one Window after the second failure")
	}
}
