// Package identity defines the port to the external system of record for
// user accounts and their verified-status flag. Ladybug never owns this
// data: it reads the flag to gate reissuing challenges and requests exactly
// one write when a challenge is solved.
package identity

import (
	"context"
	"errors"
)

// ErrUnavailable means the identity store could not be reached or errored.
// This is an infrastructure failure, never a user failure, and must not
// count against the cooldown.
var ErrUnavailable = errors.New("identity: store unavailable")

// Store is the verified-flag contract against the profile backend.
//
// SetVerifiedFlag must be idempotent: verifying an already-verified user is
// a no-op success. Implementations make a single remote call and leave
// retrying to the caller.
type Store interface {
	// VerifiedFlag reports whether the user has passed human verification.
	// An unknown user is simply unverified.
	VerifiedFlag(ctx context.Context, userID string) (bool, error)

	// SetVerifiedFlag durably records that the user passed verification.
	SetVerifiedFlag(ctx context.Context, userID string) error
}
