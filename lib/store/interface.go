package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the store implementation cannot find the
	// value for a given key, or the value has expired.
	ErrNotFound = errors.New("store: key not found")

	// ErrCantDecode is returned when a store adaptor cannot decode the store
	// format into a value used by the code.
	ErrCantDecode = errors.New("store: can't decode value")

	// ErrCantEncode is returned when a store adaptor cannot encode the value
	// into the format that the store uses.
	ErrCantEncode = errors.New("store: can't encode value")

	// ErrBadConfig is returned when a store adaptor's configuration is invalid.
	ErrBadConfig = errors.New("store: configuration is invalid")
)

// Interface is the set of calls Ladybug makes against its datastore. It
// holds challenge sessions, cooldown stamps, and (with the kv identity
// backend) verified flags, so implementations range from in-memory maps to
// shared Valkey clusters.
//
// An expiry of zero or less means the value does not expire.
type Interface interface {
	// Delete removes a value from the store by key.
	Delete(ctx context.Context, key string) error

	// Get returns the value of a key assuming that value exists and has not
	// expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set puts a value into the store that expires according to its expiry.
	Set(ctx context.Context, key string, value []byte, expiry time.Duration) error
}

// JSON adapts an Interface to a typed view over JSON-encoded values. The
// optional Prefix namespaces keys so several JSON views can share one
// backend.
type JSON[T any] struct {
	Underlying Interface
	Prefix     string
}

func (j *JSON[T]) key(key string) string {
	if j.Prefix == "" {
		return key
	}
	return j.Prefix + key
}

func (j *JSON[T]) Delete(ctx context.Context, key string) error {
	return j.Underlying.Delete(ctx, j.key(key))
}

func (j *JSON[T]) Get(ctx context.Context, key string) (T, error) {
	var result T

	data, err := j.Underlying.Get(ctx, j.key(key))
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("%w: %w", ErrCantDecode, err)
	}

	return result, nil
}

func (j *JSON[T]) Set(ctx context.Context, key string, value T, expiry time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCantEncode, err)
	}

	return j.Underlying.Set(ctx, j.key(key), data, expiry)
}
