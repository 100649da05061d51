package lib

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lovebughq/ladybug/data"
	"github.com/lovebughq/ladybug/lib/challenge"
	"github.com/lovebughq/ladybug/lib/identity"
	"github.com/lovebughq/ladybug/lib/policy"
	"github.com/lovebughq/ladybug/lib/store"
)

type Options struct {
	Policy   *policy.ParsedConfig
	Store    store.Interface
	Identity identity.Store

	BasePrefix        string
	CookieDomain      string
	CookieExpiration  time.Duration
	CookieName        string
	CookiePartitioned bool
	CookieSecure      bool

	// Session cookies and bearer tokens are signed with exactly one of
	// these. When both are empty an ed25519 key is generated at startup.
	ED25519PrivateKey ed25519.PrivateKey
	HS512Secret       []byte
}

func LoadPoliciesOrDefault(fname string, defaultVariant string) (*policy.ParsedConfig, error) {
	var fin io.ReadCloser
	var err error

	if fname != "" {
		fin, err = os.Open(fname)
		if err != nil {
			return nil, fmt.Errorf("can't parse policy file %s: %w", fname, err)
		}
	} else {
		fname = "(data)/defaultPolicy.yaml"
		fin, err = data.Policies.Open("defaultPolicy.yaml")
		if err != nil {
			return nil, fmt.Errorf("[unexpected] can't parse builtin policy file %s: %w", fname, err)
		}
	}

	defer func(fin io.ReadCloser) {
		if err := fin.Close(); err != nil {
			slog.Error("failed to close policy file", "file", fname, "err", err)
		}
	}(fin)

	parsed, err := policy.ParseConfig(fin, fname, defaultVariant)
	if err != nil {
		return nil, fmt.Errorf("can't parse policy file %s: %w", fname, err)
	}

	var validationErrs []error

	for _, c := range parsed.Clients {
		if _, ok := challenge.Get(c.Challenge.Variant); !ok {
			validationErrs = append(validationErrs, fmt.Errorf("%w: %s", policy.ErrChallengeRuleHasWrongVariant, c.Challenge.Variant))
		}
	}

	if len(validationErrs) != 0 {
		return nil, fmt.Errorf("can't do final validation of policy config: %w", errors.Join(validationErrs...))
	}

	return parsed, nil
}
