// Package session owns the challenge state machine: issuing a puzzle,
// evaluating answers step by step, enforcing the wrong-answer cooldown, and
// committing the verified flag when the puzzle is solved.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lovebughq/ladybug"
	"github.com/lovebughq/ladybug/lib/challenge"
	"github.com/lovebughq/ladybug/lib/cooldown"
	"github.com/lovebughq/ladybug/lib/identity"
	"github.com/lovebughq/ladybug/lib/policy"
	"github.com/lovebughq/ladybug/lib/store"
)

var (
	// ErrNotFound means the session does not exist or has expired.
	ErrNotFound = errors.New("session: not found")

	// ErrWrongAnswer means the submitted answer did not solve the current
	// step. The cooldown is armed and the puzzle regenerated.
	ErrWrongAnswer = errors.New("session: wrong answer")

	// ErrPersistenceFailed means the puzzle was solved but the verified
	// flag could not be written. The solve is retained: the next submit
	// retries the commit without redoing the puzzle.
	ErrPersistenceFailed = errors.New("session: can't persist verified flag")

	// ErrLockedOut means a policy threshold ended the session after too
	// many consecutive failures.
	ErrLockedOut = errors.New("session: locked out by policy")
)

// CooldownActiveError rejects an attempt made before the wrong-answer
// window has elapsed. The attempt is not consumed: nothing about the
// session or the cooldown changes.
type CooldownActiveError struct {
	Remaining time.Duration
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("session: cooldown active, retry in %v", e.Remaining)
}

// RemainingSeconds rounds the wait up to whole seconds for display.
func (e *CooldownActiveError) RemainingSeconds() int {
	if e.Remaining <= 0 {
		return 0
	}
	return int((e.Remaining + time.Second - 1) / time.Second)
}

// Status of one challenge session.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
)

// State is one challenge session. It round-trips through the session store
// between requests; nothing here is held in process memory.
type State struct {
	ID                  string            `json:"id"`
	UserID              string            `json:"userId"`
	Puzzle              *challenge.Puzzle `json:"puzzle"`
	Step                int               `json:"step"`
	Answered            bool              `json:"answered"` // solved, commit pending
	Status              Status            `json:"status"`
	ConsecutiveFailures int               `json:"consecutiveFailures"`
}

// Options configures a Manager.
type Options struct {
	Store      store.Interface
	Identity   identity.Store
	Thresholds []*policy.Threshold

	// Now is the clock; defaults to time.Now. Tests inject fakes here.
	Now func() time.Time

	// SessionTTL is how long an unsolved session lives in the store.
	SessionTTL time.Duration
}

type Manager struct {
	sessions   store.JSON[State]
	cooldowns  store.JSON[cooldown.State]
	identity   identity.Store
	thresholds []*policy.Threshold
	now        func() time.Time
	sessionTTL time.Duration
}

func NewManager(opts Options) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ttl := opts.SessionTTL
	if ttl == 0 {
		ttl = ladybug.SessionDefaultExpirationTime
	}

	return &Manager{
		sessions:   store.JSON[State]{Underlying: opts.Store, Prefix: "session:"},
		cooldowns:  store.JSON[cooldown.State]{Underlying: opts.Store, Prefix: "cooldown:"},
		identity:   opts.Identity,
		thresholds: opts.Thresholds,
		now:        now,
		sessionTTL: ttl,
	}
}

// Issue starts a fresh challenge session of the given variant for a user.
// Issuing never consults or mutates the cooldown; only answering does.
func (m *Manager) Issue(ctx context.Context, userID, variant string) (*State, error) {
	impl, ok := challenge.Get(variant)
	if !ok {
		return nil, fmt.Errorf("%w: %q", challenge.ErrUnknownVariant, variant)
	}

	p, err := impl.Generate()
	if err != nil {
		return nil, err
	}

	st := State{
		ID:     uuid.Must(uuid.NewV7()).String(),
		UserID: userID,
		Puzzle: p,
		Status: StatusInProgress,
	}

	if err := m.sessions.Set(ctx, st.ID, st, m.sessionTTL); err != nil {
		return nil, fmt.Errorf("can't save session: %w", err)
	}

	challenge.Issued.WithLabelValues(variant).Inc()
	return &st, nil
}

// Get loads a session by ID.
func (m *Manager) Get(ctx context.Context, id string) (*State, error) {
	st, err := m.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return nil, err
	}

	return &st, nil
}

// Submit evaluates an answer against the session's current step.
//
// The returned State reflects the session after the submission; on a wrong
// answer it carries the regenerated puzzle the client must render next.
func (m *Manager) Submit(ctx context.Context, id, input string) (*State, error) {
	st, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// setting the flag twice is harmless, so resubmitting a finished
	// session is simply a success
	if st.Status == StatusSucceeded {
		return st, nil
	}

	// a pending commit is an infrastructure retry, not a new attempt: no
	// cooldown check, no puzzle evaluation
	if st.Answered {
		return m.commit(ctx, st)
	}

	now := m.now()

	cd, err := m.loadCooldown(ctx, st.UserID)
	if err != nil {
		return nil, err
	}

	if !cd.Permitted(now) {
		return st, &CooldownActiveError{Remaining: cd.Remaining(now)}
	}

	impl, ok := challenge.Get(st.Puzzle.Variant)
	if !ok {
		return nil, fmt.Errorf("%w: %q", challenge.ErrUnknownVariant, st.Puzzle.Variant)
	}

	if !impl.Check(st.Puzzle, st.Step, input) {
		return m.failed(ctx, st, impl, now)
	}

	st.Step++
	if st.Step < st.Puzzle.Steps {
		if err := m.sessions.Set(ctx, st.ID, *st, m.sessionTTL); err != nil {
			return nil, fmt.Errorf("can't save session: %w", err)
		}
		return st, nil
	}

	st.Answered = true
	return m.commit(ctx, st)
}

func (m *Manager) failed(ctx context.Context, st *State, impl challenge.Impl, now time.Time) (*State, error) {
	var cd cooldown.State
	cd.RecordFailure(now)
	if err := m.cooldowns.Set(ctx, st.UserID, cd, 2*cooldown.Window); err != nil {
		return nil, fmt.Errorf("can't save cooldown: %w", err)
	}

	st.ConsecutiveFailures++
	challenge.Failed.WithLabelValues(st.Puzzle.Variant).Inc()

	if m.lockedOut(ctx, st) {
		m.sessions.Delete(ctx, st.ID)
		return nil, fmt.Errorf("%w after %d consecutive failures", ErrLockedOut, st.ConsecutiveFailures)
	}

	// every variant regenerates on failure so a retry never runs against
	// partially-revealed content
	p, err := impl.Generate()
	if err != nil {
		m.sessions.Delete(ctx, st.ID)
		return nil, err
	}

	st.Puzzle = p
	st.Step = 0

	if err := m.sessions.Set(ctx, st.ID, *st, m.sessionTTL); err != nil {
		return nil, fmt.Errorf("can't save session: %w", err)
	}

	return st, ErrWrongAnswer
}

func (m *Manager) commit(ctx context.Context, st *State) (*State, error) {
	cctx, cancel := context.WithTimeout(ctx, ladybug.CommitTimeout)
	defer cancel()

	if err := m.identity.SetVerifiedFlag(cctx, st.UserID); err != nil {
		// keep the solve so the user does not redo the puzzle, and do not
		// arm the cooldown: this was not a user failure
		if serr := m.sessions.Set(ctx, st.ID, *st, m.sessionTTL); serr != nil {
			err = errors.Join(err, serr)
		}
		return st, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	st.Status = StatusSucceeded
	if err := m.sessions.Set(ctx, st.ID, *st, m.sessionTTL); err != nil {
		return nil, fmt.Errorf("can't save session: %w", err)
	}

	// stale cooldown stamps are meaningless once verified
	m.cooldowns.Delete(ctx, st.UserID)

	challenge.Solved.WithLabelValues(st.Puzzle.Variant).Inc()
	challenge.SolveTime.WithLabelValues(st.Puzzle.Variant).Observe(m.now().Sub(st.Puzzle.IssuedAt).Seconds())

	return st, nil
}

func (m *Manager) lockedOut(ctx context.Context, st *State) bool {
	for _, t := range m.thresholds {
		if t.Action != policy.RuleDeny {
			continue
		}

		match, err := t.Eval(ctx, st.ConsecutiveFailures)
		if err != nil {
			// a broken threshold expression must not fail open into a ban
			continue
		}

		if match {
			return true
		}
	}

	return false
}

func (m *Manager) loadCooldown(ctx context.Context, userID string) (cooldown.State, error) {
	cd, err := m.cooldowns.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return cooldown.State{}, nil
		}
		return cooldown.State{}, err
	}

	return cd, nil
}

// VerificationStatus is what the surrounding app needs to gate access.
type VerificationStatus struct {
	Verified                 bool `json:"verified"`
	CooldownRemainingSeconds int  `json:"cooldownRemainingSeconds"`
}

// Status reports the user's verified flag and any active cooldown.
func (m *Manager) Status(ctx context.Context, userID string) (*VerificationStatus, error) {
	verified, err := m.identity.VerifiedFlag(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	cd, err := m.loadCooldown(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &VerificationStatus{
		Verified:                 verified,
		CooldownRemainingSeconds: cd.RemainingSeconds(m.now()),
	}, nil
}
