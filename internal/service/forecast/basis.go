package forecast

import (
	"fmt"
	"strings"

	"github.com/mamadbah2/farmreport/internal/domain/models"
)

const (
	basisFarmDefault = "(farm default)"
	basisPerGroup    = "(per-group rules)"
	basisNoRules     = "no rules selected"
	basisUnset       = "not configured"
)

// Basis describes how a task's forecast is derived, for display next to the
// numbers. It is rebuilt from cfg on every call.
func Basis(cfg models.TaskConfig) string {
	switch strategy := cfg.Strategy.(type) {
	case models.Uniform:
		return fmt.Sprintf("%s %s", basisFarmDefault, describe(strategy.Label, strategy.OffsetDays))
	case models.Grouped:
		if len(strategy.Rules) == 0 {
			return fmt.Sprintf("%s %s", basisPerGroup, basisNoRules)
		}
		parts := make([]string, 0, len(strategy.Rules))
		for _, rule := range sortedRules(strategy.Rules) {
			parts = append(parts, describe(rule.Label, rule.OffsetDays))
		}
		return fmt.Sprintf("%s %s", basisPerGroup, strings.Join(parts, ", "))
	default:
		return basisUnset
	}
}

func describe(label string, days int) string {
	if label == "" {
		return fmt.Sprintf("(%d days)", days)
	}
	return fmt.Sprintf("%s (%d days)", label, days)
}
