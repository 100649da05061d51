package policy

import (
	"testing"

	"github.com/lovebughq/ladybug/lib/policy/config"
)

func TestThresholdEval(t *testing.T) {
	th, err := ParsedThresholdFromConfig(config.Threshold{
		Name:       "lockout-after-repeated-failures",
		Expression: &config.ExpressionOrList{Expression: "consecutiveFailures >= 25"},
		Action:     config.RuleDeny,
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		failures int
		want     bool
	}{
		{failures: 0, want: false},
		{failures: 24, want: false},
		{failures: 25, want: true},
		{failures: 9001, want: true},
	} {
		got, err := th.Eval(t.Context(), tt.failures)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Eval(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

func TestThresholdBadExpression(t *testing.T) {
	_, err := ParsedThresholdFromConfig(config.Threshold{
		Name:       "wrong-variable",
		Expression: &config.ExpressionOrList{Expression: "weight > 0"},
		Action:     config.RuleDeny,
	})
	if err == nil {
		t.Fatal("compile should have failed")
	}
}
