// Package identitytest has an in-memory identity.Store with failure
// injection for exercising persistence-failure paths.
package identitytest

import (
	"context"
	"sync"
)

// Fake implements identity.Store entirely in memory.
type Fake struct {
	mu       sync.Mutex
	verified map[string]bool

	// SetErr, when non-nil, is returned by every SetVerifiedFlag call
	// instead of recording anything.
	SetErr error

	// SetCalls counts SetVerifiedFlag invocations, including failed ones.
	SetCalls int
}

func New() *Fake {
	return &Fake{verified: map[string]bool{}}
}

func (f *Fake) VerifiedFlag(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verified[userID], nil
}

func (f *Fake) SetVerifiedFlag(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SetCalls++
	if f.SetErr != nil {
		return f.SetErr
	}

	f.verified[userID] = true
	return nil
}

// FailNext makes every subsequent commit fail with err until cleared.
func (f *Fake) FailNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetErr = err
}

// Heal clears an injected failure.
func (f *Fake) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetErr = nil
}
