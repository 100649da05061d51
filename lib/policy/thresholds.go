package policy

import (
	"context"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/lovebughq/ladybug/lib/policy/config"
	"github.com/lovebughq/ladybug/lib/policy/expressions"
)

type Threshold struct {
	config.Threshold
	program cel.Program
}

func ParsedThresholdFromConfig(t config.Threshold) (*Threshold, error) {
	env, err := expressions.ThresholdEnvironment()
	if err != nil {
		return nil, err
	}

	ast, iss := env.Compile(t.Expression.String())
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}

	program, err := expressions.Compile(env, ast)
	if err != nil {
		return nil, err
	}

	return &Threshold{
		Threshold: t,
		program:   program,
	}, nil
}

// Eval reports whether a session with this many consecutive wrong answers
// trips the threshold.
func (t *Threshold) Eval(ctx context.Context, consecutiveFailures int) (bool, error) {
	result, _, err := t.program.ContextEval(ctx, &ThresholdRequest{ConsecutiveFailures: consecutiveFailures})
	if err != nil {
		return false, err
	}

	if val, ok := result.(types.Bool); ok {
		return bool(val), nil
	}

	return false, nil
}

type ThresholdRequest struct {
	ConsecutiveFailures int
}

func (tr *ThresholdRequest) Parent() cel.Activation { return nil }

func (tr *ThresholdRequest) ResolveName(name string) (any, bool) {
	switch name {
	case "consecutiveFailures":
		return tr.ConsecutiveFailures, true
	default:
		return nil, false
	}
}
