package policy

import (
	"log/slog"

	"github.com/lovebughq/ladybug/lib/policy/config"
)

type CheckResult struct {
	Name    string
	Rule    config.Rule
	Variant string
}

func (cr CheckResult) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", cr.Name),
		slog.String("rule", string(cr.Rule)),
		slog.String("variant", cr.Variant),
	)
}
