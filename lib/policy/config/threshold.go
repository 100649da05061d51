package config

import (
	"errors"
	"fmt"
)

var (
	ErrThresholdMustHaveName       = errors.New("config.Threshold: must set name")
	ErrThresholdMustHaveExpression = errors.New("config.Threshold: must set expression")
	ErrThresholdMustDeny           = errors.New("config.Threshold: action must be DENY")

	// DefaultThresholds kick in when the policy file has no thresholds
	// block. With the answer cooldown in front of it, twenty five
	// consecutive failures is a solid twenty five minutes of guessing.
	DefaultThresholds = []Threshold{
		{
			Name: "lockout-after-repeated-failures",
			Expression: &ExpressionOrList{
				Expression: "consecutiveFailures >= 25",
			},
			Action: RuleDeny,
		},
	}
)

// Threshold ends a challenge session once a client has failed too often.
type Threshold struct {
	Name       string            `json:"name" yaml:"name"`
	Expression *ExpressionOrList `json:"expression" yaml:"expression"`
	Action     Rule              `json:"action" yaml:"action"`
}

func (t Threshold) Valid() error {
	var errs []error

	if len(t.Name) == 0 {
		errs = append(errs, ErrThresholdMustHaveName)
	}

	if t.Expression == nil {
		errs = append(errs, ErrThresholdMustHaveExpression)
	}

	if t.Expression != nil {
		if err := t.Expression.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := t.Action.Valid(); err != nil {
		errs = append(errs, err)
	}

	if t.Action != RuleDeny && t.Action != RuleUnknown {
		errs = append(errs, ErrThresholdMustDeny)
	}

	if len(errs) != 0 {
		return fmt.Errorf("config: threshold entry for %q is not valid:\n%w", t.Name, errors.Join(errs...))
	}

	return nil
}
