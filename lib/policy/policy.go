package policy

import (
	"errors"
	"fmt"
	"io"

	"github.com/lovebughq/ladybug/lib/policy/checker"
	"github.com/lovebughq/ladybug/lib/policy/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Applications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ladybug_policy_results",
		Help: "The results of each policy rule",
	}, []string{"rule", "action"})

	ErrChallengeRuleHasWrongVariant = errors.New("config.Client.ChallengeRules: variant is invalid")
)

// Checker is re-exported so callers don't need to import the checker
// package for the common case.
type Checker = checker.Impl

// Rule actions, re-exported from the config package.
type Rule = config.Rule

const (
	RuleAllow     = config.RuleAllow
	RuleDeny      = config.RuleDeny
	RuleChallenge = config.RuleChallenge
)

type ParsedConfig struct {
	orig *config.Config

	Clients        []ClientRule
	Thresholds     []*Threshold
	DefaultVariant string
	StatusCodes    config.StatusCodes

	// Store is the backend selection from the policy file, nil when the
	// file leaves it to the command line.
	Store *config.Store
}

func NewParsedConfig(orig *config.Config) *ParsedConfig {
	return &ParsedConfig{
		orig:        orig,
		StatusCodes: orig.StatusCodes,
		Store:       orig.Store,
	}
}

// ParseConfig reads a policy file and compiles every rule. A rule that
// fails to compile fails the whole load: a half-applied policy is worse
// than no policy.
func ParseConfig(fin io.Reader, fname string, defaultVariant string) (*ParsedConfig, error) {
	c, err := config.Load(fin, fname)
	if err != nil {
		return nil, err
	}

	var validationErrs []error

	result := NewParsedConfig(c)
	result.DefaultVariant = defaultVariant

	for _, cc := range c.Clients {
		if cerr := cc.Valid(); cerr != nil {
			validationErrs = append(validationErrs, cerr)
			continue
		}

		parsedRule := ClientRule{
			Name:   cc.Name,
			Action: cc.Action,
		}

		cl := checker.List{}

		if len(cc.RemoteAddr) > 0 {
			c, err := NewRemoteAddrChecker(cc.RemoteAddr)
			if err != nil {
				validationErrs = append(validationErrs, fmt.Errorf("while processing rule %s remote addr set: %w", cc.Name, err))
			} else {
				cl = append(cl, c)
			}
		}

		if cc.UserAgentRegex != nil {
			c, err := NewUserAgentChecker(*cc.UserAgentRegex)
			if err != nil {
				validationErrs = append(validationErrs, fmt.Errorf("while processing rule %s user agent regex: %w", cc.Name, err))
			} else {
				cl = append(cl, c)
			}
		}

		if cc.PathRegex != nil {
			c, err := NewPathChecker(*cc.PathRegex)
			if err != nil {
				validationErrs = append(validationErrs, fmt.Errorf("while processing rule %s path regex: %w", cc.Name, err))
			} else {
				cl = append(cl, c)
			}
		}

		if len(cc.HeadersRegex) > 0 {
			c, err := NewHeadersChecker(cc.HeadersRegex)
			if err != nil {
				validationErrs = append(validationErrs, fmt.Errorf("while processing rule %s headers regex map: %w", cc.Name, err))
			} else {
				cl = append(cl, c)
			}
		}

		if cc.Expression != nil {
			c, err := NewCELChecker(cc.Expression)
			if err != nil {
				validationErrs = append(validationErrs, fmt.Errorf("while processing rule %s expressions: %w", cc.Name, err))
			} else {
				cl = append(cl, c)
			}
		}

		if cc.Challenge == nil {
			parsedRule.Challenge = &config.ChallengeRules{
				Variant: defaultVariant,
			}
		} else {
			parsedRule.Challenge = cc.Challenge
			if parsedRule.Challenge.Variant == "" {
				parsedRule.Challenge.Variant = defaultVariant
			}
		}

		parsedRule.Rules = cl

		result.Clients = append(result.Clients, parsedRule)
	}

	for _, t := range c.Thresholds {
		parsed, err := ParsedThresholdFromConfig(t)
		if err != nil {
			validationErrs = append(validationErrs, fmt.Errorf("while processing threshold %s: %w", t.Name, err))
			continue
		}

		result.Thresholds = append(result.Thresholds, parsed)
	}

	if len(validationErrs) > 0 {
		return nil, fmt.Errorf("errors validating policy config %s: %w", fname, errors.Join(validationErrs...))
	}

	return result, nil
}
