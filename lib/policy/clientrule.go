package policy

import (
	"fmt"

	"github.com/lovebughq/ladybug/internal"
	"github.com/lovebughq/ladybug/lib/policy/config"
)

// ClientRule is one parsed classification rule: a set of matchers plus the
// action taken when they fire.
type ClientRule struct {
	Rules     Checker
	Challenge *config.ChallengeRules
	Name      string
	Action    config.Rule
}

func (c ClientRule) Hash() string {
	return internal.SHA256sum(fmt.Sprintf("%s::%s", c.Name, c.Rules.Hash()))
}
