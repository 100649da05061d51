// Package kv adapts Ladybug's own datastore into an identity.Store. This
// backend is for single-service deployments where no separate profile
// service holds the verified flag.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/lovebughq/ladybug/lib/identity"
	"github.com/lovebughq/ladybug/lib/store"
)

type record struct {
	Verified bool `json:"verified"`
}

type Store struct {
	flags store.JSON[record]
}

// New wraps a datastore. Verified flags are written without expiry.
func New(underlying store.Interface) *Store {
	return &Store{
		flags: store.JSON[record]{
			Underlying: underlying,
			Prefix:     "verified:",
		},
	}
}

func (s *Store) VerifiedFlag(ctx context.Context, userID string) (bool, error) {
	rec, err := s.flags.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}

	return rec.Verified, nil
}

func (s *Store) SetVerifiedFlag(ctx context.Context, userID string) error {
	if err := s.flags.Set(ctx, userID, record{Verified: true}, 0); err != nil {
		return fmt.Errorf("%w: %w", identity.ErrUnavailable, err)
	}

	return nil
}
