package models

import "github.com/shopspring/decimal"

// StrategyKind names the two mutually exclusive forecast configuration shapes.
type StrategyKind string

const (
	// StrategyFarmDefault applies one elapsed-day offset to every base event.
	StrategyFarmDefault StrategyKind = "FARM_DEFAULT"
	// StrategyPerGroup applies one offset per selected cohort rule.
	StrategyPerGroup StrategyKind = "PER_GROUP"
)

// Strategy is the sum of Uniform and Grouped. The method is unexported so no
// other shape can be introduced outside this package.
type Strategy interface {
	Kind() StrategyKind
	sealed()
}

// Uniform is a single farm-wide offset.
type Uniform struct {
	Label      string `json:"label"`
	OffsetDays int    `json:"offset_days"`
}

func (Uniform) Kind() StrategyKind { return StrategyFarmDefault }
func (Uniform) sealed()            {}

// GroupRule projects the events of one cohort with its own offset.
type GroupRule struct {
	Seq        int    `json:"seq"`
	Label      string `json:"label"`
	Group      string `json:"group"`
	OffsetDays int    `json:"offset_days"`
}

// Grouped is a set of per-cohort rules whose contributions are summed.
type Grouped struct {
	Rules []GroupRule `json:"rules"`
}

func (Grouped) Kind() StrategyKind { return StrategyPerGroup }
func (Grouped) sealed()            {}

// TaskConfig tells the forecast engine how to interpret one task's events.
type TaskConfig struct {
	Task     TaskType `json:"task"`
	Strategy Strategy `json:"-"`

	// Source is the task whose recorded events the forecast projects from,
	// for example weanings for the next matings. Empty means Task itself.
	Source TaskType `json:"source,omitempty"`

	// CarryOverdue counts predictions that fall before the window on its
	// first day instead of dropping them.
	CarryOverdue bool `json:"carry_overdue"`

	// AggregateOnly tasks are reported as a window total, not per day.
	AggregateOnly bool `json:"aggregate_only"`

	// CountHeads sums the animals of each base event. Otherwise every event
	// counts once: one farrowing of twelve piglets is one weaning to come.
	CountHeads bool `json:"count_heads"`

	// RatePercent scales the window total of aggregate-only tasks. Unset
	// means 100.
	RatePercent decimal.NullDecimal `json:"rate_percent"`
}

// FarmConfig is a farm's forecast configuration for every task type.
type FarmConfig struct {
	FarmID int64                   `json:"farm_id"`
	Tasks  map[TaskType]TaskConfig `json:"tasks"`
}

// SourceTask returns the task type whose events feed this forecast.
func (c TaskConfig) SourceTask() TaskType {
	if c.Source == "" {
		return c.Task
	}
	return c.Source
}

// Rate returns RatePercent, 100 when unset.
func (c TaskConfig) Rate() decimal.Decimal {
	if !c.RatePercent.Valid {
		return decimal.NewFromInt(100)
	}
	return c.RatePercent.Decimal
}

// Weight is what one base event adds to a forecast or period count.
func (c TaskConfig) Weight(e BaseEvent) int {
	if c.CountHeads {
		return e.Heads()
	}
	return 1
}
