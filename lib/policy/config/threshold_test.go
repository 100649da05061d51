package config

import (
	"errors"
	"testing"
)

func TestThresholdValid(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input *Threshold
		err   error
	}{
		{
			name: "basic lockout",
			input: &Threshold{
				Name:       "basic-lockout",
				Expression: &ExpressionOrList{Expression: "consecutiveFailures >= 25"},
				Action:     RuleDeny,
			},
			err: nil,
		},
		{
			name:  "no name",
			input: &Threshold{},
			err:   ErrThresholdMustHaveName,
		},
		{
			name:  "no expression",
			input: &Threshold{Name: "nameless-wonder"},
			err:   ErrThresholdMustHaveExpression,
		},
		{
			name: "invalid expression",
			input: &Threshold{
				Name:       "empty-expression",
				Expression: &ExpressionOrList{},
				Action:     RuleDeny,
			},
			err: ErrExpressionEmpty,
		},
		{
			name: "allow action",
			input: &Threshold{
				Name:       "allow-everything",
				Expression: &ExpressionOrList{Expression: "true"},
				Action:     RuleAllow,
			},
			err: ErrThresholdMustDeny,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.input.Valid(); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("invalid error returned")
			}
		})
	}
}
