package challenge

import "errors"

var (
	// ErrUnknownVariant means the policy asked for a challenge variant that
	// is not in the registry.
	ErrUnknownVariant = errors.New("challenge: unknown variant")

	// ErrGenerationUnavailable means the variant could not produce a fresh
	// puzzle, e.g. the entropy source failed. Fatal for the session.
	ErrGenerationUnavailable = errors.New("challenge: can't generate puzzle")
)
