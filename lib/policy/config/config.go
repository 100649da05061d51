// Package config declares the on-disk policy file format. Policies decide
// which clients skip verification, which are refused outright, and which
// challenge variant everyone else has to solve.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/lovebughq/ladybug/data"
	"github.com/lovebughq/ladybug/lib/challenge"
	_ "github.com/lovebughq/ladybug/lib/challenge/all"
	"k8s.io/apimachinery/pkg/util/yaml"
)

var (
	ErrNoClientRulesDefined             = errors.New("config: must define at least one (1) client rule")
	ErrClientMustHaveName               = errors.New("config.Client: must set name")
	ErrClientMustHaveMatcher            = errors.New("config.Client: must set either user_agent_regex, path_regex, headers_regex, remote_addresses, or an expression")
	ErrClientCantHaveUserAgentAndPath   = errors.New("config.Client: must set either user_agent_regex or path_regex, not both")
	ErrUnknownAction                    = errors.New("config.Client: unknown action")
	ErrInvalidUserAgentRegex            = errors.New("config.Client: invalid user agent regex")
	ErrInvalidPathRegex                 = errors.New("config.Client: invalid path regex")
	ErrInvalidHeadersRegex              = errors.New("config.Client: invalid headers regex")
	ErrInvalidCIDR                      = errors.New("config.Client: invalid CIDR")
	ErrRegexEndsWithNewline             = errors.New("config.Client: regular expression ends with newline (try >- instead of > in yaml)")
	ErrInvalidImportStatement           = errors.New("config.ImportStatement: invalid source file")
	ErrCantSetRuleAndImportValuesAtOnce = errors.New("config.RuleOrImport: can't set client rules and import values at the same time")
	ErrMustSetRuleOrImport              = errors.New("config.RuleOrImport: rule definition is invalid, you must set either client rules or an import statement, not both")
	ErrStatusCodeNotValid               = errors.New("config.StatusCode: status code not valid, must be between 100 and 599")
	ErrUnknownVariant                   = errors.New("config.ChallengeRules: unknown challenge variant")
)

type Rule string

const (
	RuleUnknown   Rule = ""
	RuleAllow     Rule = "ALLOW"
	RuleDeny      Rule = "DENY"
	RuleChallenge Rule = "CHALLENGE"
)

func (r Rule) Valid() error {
	switch r {
	case RuleAllow, RuleDeny, RuleChallenge:
		return nil
	default:
		return ErrUnknownAction
	}
}

type ClientConfig struct {
	UserAgentRegex *string           `json:"user_agent_regex,omitempty" yaml:"user_agent_regex,omitempty"`
	PathRegex      *string           `json:"path_regex,omitempty" yaml:"path_regex,omitempty"`
	HeadersRegex   map[string]string `json:"headers_regex,omitempty" yaml:"headers_regex,omitempty"`
	Expression     *ExpressionOrList `json:"expression,omitempty" yaml:"expression,omitempty"`
	Challenge      *ChallengeRules   `json:"challenge,omitempty" yaml:"challenge,omitempty"`
	Name           string            `json:"name" yaml:"name"`
	Action         Rule              `json:"action" yaml:"action"`
	RemoteAddr     []string          `json:"remote_addresses,omitempty" yaml:"remote_addresses,omitempty"`
}

func (c ClientConfig) Zero() bool {
	for _, cond := range []bool{
		c.Name != "",
		c.UserAgentRegex != nil,
		c.PathRegex != nil,
		len(c.HeadersRegex) != 0,
		c.Expression != nil,
		c.Action != "",
		len(c.RemoteAddr) != 0,
		c.Challenge != nil,
	} {
		if cond {
			return false
		}
	}

	return true
}

func (c *ClientConfig) Valid() error {
	var errs []error

	if c.Name == "" {
		errs = append(errs, ErrClientMustHaveName)
	}

	allFieldsEmpty := c.UserAgentRegex == nil &&
		c.PathRegex == nil &&
		len(c.RemoteAddr) == 0 &&
		len(c.HeadersRegex) == 0

	if allFieldsEmpty && c.Expression == nil {
		errs = append(errs, ErrClientMustHaveMatcher)
	}

	if c.UserAgentRegex != nil && c.PathRegex != nil {
		errs = append(errs, ErrClientCantHaveUserAgentAndPath)
	}

	if c.UserAgentRegex != nil {
		if strings.HasSuffix(*c.UserAgentRegex, "\n") {
			errs = append(errs, fmt.Errorf("%w: user agent regex: %q", ErrRegexEndsWithNewline, *c.UserAgentRegex))
		}

		if _, err := regexp.Compile(*c.UserAgentRegex); err != nil {
			errs = append(errs, ErrInvalidUserAgentRegex, err)
		}
	}

	if c.PathRegex != nil {
		if strings.HasSuffix(*c.PathRegex, "\n") {
			errs = append(errs, fmt.Errorf("%w: path regex: %q", ErrRegexEndsWithNewline, *c.PathRegex))
		}

		if _, err := regexp.Compile(*c.PathRegex); err != nil {
			errs = append(errs, ErrInvalidPathRegex, err)
		}
	}

	if len(c.HeadersRegex) > 0 {
		for name, expr := range c.HeadersRegex {
			if name == "" {
				continue
			}

			if strings.HasSuffix(expr, "\n") {
				errs = append(errs, fmt.Errorf("%w: header %s regex: %q", ErrRegexEndsWithNewline, name, expr))
			}

			if _, err := regexp.Compile(expr); err != nil {
				errs = append(errs, ErrInvalidHeadersRegex, err)
			}
		}
	}

	if len(c.RemoteAddr) > 0 {
		for _, cidr := range c.RemoteAddr {
			if _, _, err := net.ParseCIDR(cidr); err != nil {
				errs = append(errs, ErrInvalidCIDR, err)
			}
		}
	}

	if c.Expression != nil {
		if err := c.Expression.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	switch c.Action {
	case RuleAllow, RuleChallenge, RuleDeny:
		// okay
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownAction, c.Action))
	}

	if c.Action == RuleChallenge && c.Challenge != nil {
		if err := c.Challenge.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("config: client entry for %q is not valid:\n%w", c.Name, errors.Join(errs...))
	}

	return nil
}

// ChallengeRules picks which challenge variant a matching client gets.
type ChallengeRules struct {
	Variant string `json:"variant,omitempty" yaml:"variant,omitempty"`
}

func (cr ChallengeRules) Valid() error {
	if cr.Variant == "" {
		return nil
	}

	if _, ok := challenge.Get(cr.Variant); !ok {
		return fmt.Errorf("%w: %q (have: %v)", ErrUnknownVariant, cr.Variant, challenge.Variants())
	}

	return nil
}

type ImportStatement struct {
	Import  string `json:"import"`
	Clients []ClientConfig
}

func (is *ImportStatement) open() (fs.File, error) {
	if strings.HasPrefix(is.Import, "(data)/") {
		fname := strings.TrimPrefix(is.Import, "(data)/")
		fin, err := data.Policies.Open(fname)
		return fin, err
	}

	return os.Open(is.Import)
}

func (is *ImportStatement) load() error {
	fin, err := is.open()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidImportStatement, is.Import, err)
	}
	defer fin.Close()

	var imported []RuleOrImport
	var result []ClientConfig

	if err := yaml.NewYAMLToJSONDecoder(fin).Decode(&imported); err != nil {
		return fmt.Errorf("can't parse %s: %w", is.Import, err)
	}

	var errs []error

	for _, r := range imported {
		if err := r.Valid(); err != nil {
			errs = append(errs, err)
		}

		if r.ImportStatement != nil {
			result = append(result, r.ImportStatement.Clients...)
		}

		if r.ClientConfig != nil {
			result = append(result, *r.ClientConfig)
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("config %s is not valid:\n%w", is.Import, errors.Join(errs...))
	}

	is.Clients = result

	return nil
}

func (is *ImportStatement) Valid() error {
	return is.load()
}

type RuleOrImport struct {
	*ClientConfig    `json:",inline"`
	*ImportStatement `json:",inline"`
}

func (roi *RuleOrImport) Valid() error {
	if roi.ClientConfig != nil && roi.ImportStatement != nil {
		return ErrCantSetRuleAndImportValuesAtOnce
	}

	if roi.ClientConfig != nil {
		return roi.ClientConfig.Valid()
	}

	if roi.ImportStatement != nil {
		return roi.ImportStatement.Valid()
	}

	return ErrMustSetRuleOrImport
}

type StatusCodes struct {
	Challenge int `json:"CHALLENGE"`
	Deny      int `json:"DENY"`
}

func (sc StatusCodes) Valid() error {
	var errs []error

	if sc.Challenge == 0 || (sc.Challenge < 100 && sc.Challenge >= 599) {
		errs = append(errs, fmt.Errorf("%w: challenge is %d", ErrStatusCodeNotValid, sc.Challenge))
	}

	if sc.Deny == 0 || (sc.Deny < 100 && sc.Deny >= 599) {
		errs = append(errs, fmt.Errorf("%w: deny is %d", ErrStatusCodeNotValid, sc.Deny))
	}

	if len(errs) != 0 {
		return fmt.Errorf("status codes not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

type fileConfig struct {
	Clients     []RuleOrImport `json:"clients"`
	StatusCodes StatusCodes    `json:"status_codes"`
	Thresholds  []Threshold    `json:"thresholds"`
	Store       *Store         `json:"store,omitempty"`
}

func (c *fileConfig) Valid() error {
	var errs []error

	if len(c.Clients) == 0 {
		errs = append(errs, ErrNoClientRulesDefined)
	}

	for i, r := range c.Clients {
		if err := r.Valid(); err != nil {
			errs = append(errs, fmt.Errorf("client %d: %w", i, err))
		}
	}

	if err := c.StatusCodes.Valid(); err != nil {
		errs = append(errs, err)
	}

	if c.Store != nil {
		if err := c.Store.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	for i, t := range c.Thresholds {
		if err := t.Valid(); err != nil {
			errs = append(errs, fmt.Errorf("threshold %d: %w", i, err))
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("config is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

func Load(fin io.Reader, fname string) (*Config, error) {
	c := &fileConfig{
		StatusCodes: StatusCodes{
			Challenge: http.StatusUnauthorized,
			Deny:      http.StatusForbidden,
		},
	}

	if err := yaml.NewYAMLToJSONDecoder(fin).Decode(&c); err != nil {
		return nil, fmt.Errorf("can't parse policy config YAML %s: %w", fname, err)
	}

	if err := c.Valid(); err != nil {
		return nil, err
	}

	result := &Config{
		StatusCodes: c.StatusCodes,
		Store:       c.Store,
	}

	var validationErrs []error

	for _, roi := range c.Clients {
		if roi.ImportStatement != nil {
			if err := roi.load(); err != nil {
				validationErrs = append(validationErrs, err)
				continue
			}

			result.Clients = append(result.Clients, roi.ImportStatement.Clients...)
		}

		if roi.ClientConfig != nil {
			if err := roi.ClientConfig.Valid(); err != nil {
				validationErrs = append(validationErrs, err)
				continue
			}

			result.Clients = append(result.Clients, *roi.ClientConfig)
		}
	}

	if len(c.Thresholds) == 0 {
		c.Thresholds = DefaultThresholds
	}

	for _, t := range c.Thresholds {
		if err := t.Valid(); err != nil {
			validationErrs = append(validationErrs, err)
			continue
		}

		result.Thresholds = append(result.Thresholds, t)
	}

	if len(validationErrs) > 0 {
		return nil, fmt.Errorf("errors validating policy config %s: %w", fname, errors.Join(validationErrs...))
	}

	return result, nil
}

type Config struct {
	Clients     []ClientConfig
	Thresholds  []Threshold
	StatusCodes StatusCodes
	Store       *Store
}

func (c Config) Valid() error {
	var errs []error

	if len(c.Clients) == 0 {
		errs = append(errs, ErrNoClientRulesDefined)
	}

	for _, r := range c.Clients {
		if err := r.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("config is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}
