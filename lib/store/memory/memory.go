package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lovebughq/ladybug/lib/store"
)

type factory struct{}

func (factory) Build(ctx context.Context, _ json.RawMessage) (store.Interface, error) {
	return New(ctx), nil
}

func (factory) Valid(json.RawMessage) error { return nil }

func init() {
	store.Register("memory", factory{})
}

type entry struct {
	value   []byte
	expires time.Time // zero means the entry never expires
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

type impl struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func (i *impl) Delete(_ context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.entries[key]; !ok {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	delete(i.entries, key)
	return nil
}

func (i *impl) Get(_ context.Context, key string) ([]byte, error) {
	i.mu.RLock()
	e, ok := i.entries[key]
	i.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	result := make([]byte, len(e.value))
	copy(result, e.value)
	return result, nil
}

func (i *impl) Set(_ context.Context, key string, value []byte, expiry time.Duration) error {
	e := entry{value: make([]byte, len(value))}
	copy(e.value, value)

	if expiry > 0 {
		e.expires = time.Now().Add(expiry)
	}

	i.mu.Lock()
	i.entries[key] = e
	i.mu.Unlock()

	return nil
}

func (i *impl) sweep() {
	now := time.Now()

	i.mu.Lock()
	defer i.mu.Unlock()

	for key, e := range i.entries {
		if e.expired(now) {
			delete(i.entries, key)
		}
	}
}

func (i *impl) sweepThread(ctx context.Context) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			i.sweep()
		}
	}
}

// New creates a simple in-memory store. This will not scale past a single
// Ladybug instance; use the valkey backend for that.
func New(ctx context.Context) store.Interface {
	result := &impl{entries: map[string]entry{}}

	go result.sweepThread(ctx)

	return result
}
