// Package ladybug contains the shared constants and defaults for the
// LoveBug human-verification service.
package ladybug

import "time"

var (
	// Version is the version of Ladybug in use, overridden at build time.
	Version = "devel"

	// BasePrefix is the root URL the service is mounted under, e.g. /verify.
	BasePrefix = ""

	// ForcedLanguage overrides Accept-Language negotiation when set.
	ForcedLanguage = ""

	// SessionCookieName is the name of the challenge session cookie.
	SessionCookieName = "lovebug.app-ladybug-session"
)

const (
	// DefaultVariant is the challenge variant used when the policy does not
	// pick one.
	DefaultVariant = "textcaptcha"

	// APIPrefix is where all JSON API routes are mounted.
	APIPrefix = "/.lovebug.app/ladybug/api/"

	// SessionDefaultExpirationTime is how long an unsolved challenge session
	// may sit in the store before it is forgotten.
	SessionDefaultExpirationTime = 15 * time.Minute

	// CommitTimeout bounds the remote write of the verified flag.
	CommitTimeout = 10 * time.Second
)
