package forecast

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/farmreport/internal/domain/models"
)

// Farm-level defaults used when a farm has not configured a task.
const (
	DefaultReturnToMatingDays = 7
	DefaultGestationDays      = 115
	DefaultWeaningDays        = 21
	DefaultPregnancyCheckDays = 21
	DefaultShipmentAgeDays    = 180
	DefaultRearingRatePercent = 90
)

// DefaultFarmConfig returns the configuration a farm gets before it sets up
// its own rules.
func DefaultFarmConfig(farmID int64) models.FarmConfig {
	return models.FarmConfig{
		FarmID: farmID,
		Tasks: map[models.TaskType]models.TaskConfig{
			models.TaskMating: {
				Task:         models.TaskMating,
				Strategy:     models.Uniform{Label: "mating after weaning", OffsetDays: DefaultReturnToMatingDays},
				Source:       models.TaskWeaning,
				CarryOverdue: true,
			},
			models.TaskPregnancyCheck: {
				Task:     models.TaskPregnancyCheck,
				Strategy: models.Uniform{Label: "check after mating", OffsetDays: DefaultPregnancyCheckDays},
				Source:   models.TaskMating,
			},
			models.TaskFarrowing: {
				Task:     models.TaskFarrowing,
				Strategy: models.Uniform{Label: "gestation", OffsetDays: DefaultGestationDays},
				Source:   models.TaskMating,
			},
			models.TaskWeaning: {
				Task:     models.TaskWeaning,
				Strategy: models.Uniform{Label: "lactation", OffsetDays: DefaultWeaningDays},
				Source:   models.TaskFarrowing,
			},
			models.TaskVaccination: {
				Task:     models.TaskVaccination,
				Strategy: models.Grouped{},
				Source:   models.TaskFarrowing,
			},
			models.TaskShipment: {
				Task:          models.TaskShipment,
				Strategy:      models.Uniform{Label: "shipment age", OffsetDays: DefaultShipmentAgeDays - DefaultWeaningDays},
				Source:        models.TaskWeaning,
				AggregateOnly: true,
				CountHeads:    true,
				RatePercent:   decimal.NewNullDecimal(decimal.NewFromInt(DefaultRearingRatePercent)),
			},
		},
	}
}

// WithDefaults fills the tasks, and the event sources, cfg leaves unset
// from DefaultFarmConfig.
func WithDefaults(cfg models.FarmConfig) models.FarmConfig {
	merged := DefaultFarmConfig(cfg.FarmID)
	for task, taskCfg := range cfg.Tasks {
		if taskCfg.Strategy == nil {
			continue
		}
		taskCfg.Task = task
		if taskCfg.Source == "" {
			taskCfg.Source = merged.Tasks[task].Source
		}
		merged.Tasks[task] = taskCfg
	}
	return merged
}

// ErrInvalidConfig is returned by Validate for a configuration the engine
// cannot project.
var ErrInvalidConfig = errors.New("invalid forecast config")

// Validate checks the task types, offsets and rates of cfg.
func Validate(cfg models.FarmConfig) error {
	for task, taskCfg := range cfg.Tasks {
		if !task.IsValid() {
			return fmt.Errorf("%w: unknown task %q", ErrInvalidConfig, task)
		}
		if taskCfg.Task != "" && taskCfg.Task != task {
			return fmt.Errorf("%w: %s configured under %s", ErrInvalidConfig, taskCfg.Task, task)
		}
		if taskCfg.Source != "" && !taskCfg.Source.IsValid() {
			return fmt.Errorf("%w: unknown source %q for %s", ErrInvalidConfig, taskCfg.Source, task)
		}
		if taskCfg.RatePercent.Valid && taskCfg.RatePercent.Decimal.IsNegative() {
			return fmt.Errorf("%w: negative rate for %s", ErrInvalidConfig, task)
		}

		switch strategy := taskCfg.Strategy.(type) {
		case nil:
		case models.Uniform:
			if strategy.OffsetDays < 0 {
				return fmt.Errorf("%w: negative offset for %s", ErrInvalidConfig, task)
			}
		case models.Grouped:
			seen := make(map[int]bool, len(strategy.Rules))
			for _, rule := range strategy.Rules {
				if rule.OffsetDays < 0 {
					return fmt.Errorf("%w: negative offset in rule %d of %s", ErrInvalidConfig, rule.Seq, task)
				}
				if seen[rule.Seq] {
					return fmt.Errorf("%w: duplicate rule %d of %s", ErrInvalidConfig, rule.Seq, task)
				}
				seen[rule.Seq] = true
			}
		}
	}
	return nil
}
