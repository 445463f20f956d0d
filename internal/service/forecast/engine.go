// Package forecast projects upcoming farm tasks onto a calendar window by
// adding configured elapsed-day offsets to past base events.
package forecast

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

// ErrInvalidWindow is returned when the window has no days.
var ErrInvalidWindow = errors.New("forecast window must have at least one day")

// OverdueLookbackDays bounds how long before the window an overdue
// prediction is still carried onto its first day.
const OverdueLookbackDays = 30

var hundred = decimal.NewFromInt(100)

// EventSet holds a farm's recorded events per task type.
type EventSet map[models.TaskType][]models.BaseEvent

// Row is the projection of one task type over the window.
type Row struct {
	Task  models.TaskType
	Start time.Time

	// Days holds the predicted count per calendar day, Days[0] being Start.
	Days []int

	// Total is the sum of Days, scaled by the task rate when the task is
	// reported in aggregate only.
	Total int

	AggregateOnly bool
	Method        models.StrategyKind
	Basis         string
}

// Grid is the projection of every task type for one farm.
type Grid struct {
	FarmID int64
	Start  time.Time
	Days   int
	Rows   map[models.TaskType]Row
}

// Row returns the projection of task, an all-zero row when absent.
func (g Grid) Row(task models.TaskType) Row {
	if row, ok := g.Rows[task]; ok {
		return row
	}
	return Row{Task: task, Start: g.Start, Days: make([]int, g.Days)}
}

// Dates returns the calendar day of each column.
func (g Grid) Dates() []time.Time {
	dates := make([]time.Time, g.Days)
	for i := range dates {
		dates[i] = kst.AddDays(g.Start, i)
	}
	return dates
}

// Project computes one task's row for [windowStart, windowStart+windowDays).
// It is a pure function of its arguments; the caller derives windowStart from
// the KST clock.
func Project(cfg models.TaskConfig, events []models.BaseEvent, windowStart time.Time, windowDays int) (Row, error) {
	if windowDays <= 0 {
		return Row{}, fmt.Errorf("%w: %d", ErrInvalidWindow, windowDays)
	}

	start := kst.StartOfDay(windowStart)
	row := Row{
		Task:          cfg.Task,
		Start:         start,
		Days:          make([]int, windowDays),
		AggregateOnly: cfg.AggregateOnly,
		Basis:         Basis(cfg),
	}

	switch strategy := cfg.Strategy.(type) {
	case models.Uniform:
		row.Method = strategy.Kind()
		accumulate(row.Days, events, strategy.OffsetDays, start, cfg)
	case models.Grouped:
		row.Method = strategy.Kind()
		for _, rule := range strategy.Rules {
			accumulate(row.Days, selectGroup(events, rule.Group), rule.OffsetDays, start, cfg)
		}
	}

	row.Total = total(row.Days, cfg)
	return row, nil
}

// ProjectAll projects every task type from the events of its source task.
// Source events already followed by a recorded event of the task itself are
// left out, see Pending. Tasks missing from cfg produce all-zero rows.
func ProjectAll(farmID int64, cfg models.FarmConfig, events EventSet, windowStart time.Time, windowDays int) (Grid, error) {
	if windowDays <= 0 {
		return Grid{}, fmt.Errorf("%w: %d", ErrInvalidWindow, windowDays)
	}

	grid := Grid{
		FarmID: farmID,
		Start:  kst.StartOfDay(windowStart),
		Days:   windowDays,
		Rows:   make(map[models.TaskType]Row, len(models.TaskTypes)),
	}
	for _, task := range models.TaskTypes {
		taskCfg, ok := cfg.Tasks[task]
		if !ok {
			taskCfg = models.TaskConfig{Task: task}
		}
		taskCfg.Task = task

		base := events[taskCfg.SourceTask()]
		if taskCfg.SourceTask() != task && !taskCfg.CountHeads {
			base = Pending(base, events[task])
		}

		row, err := Project(taskCfg, base, windowStart, windowDays)
		if err != nil {
			return Grid{}, fmt.Errorf("project %s: %w", task, err)
		}
		grid.Rows[task] = row
	}
	return grid, nil
}

func accumulate(days []int, events []models.BaseEvent, offset int, start time.Time, cfg models.TaskConfig) {
	for _, e := range events {
		idx := kst.DaysBetween(start, kst.AddDays(e.Date, offset))
		if idx < 0 {
			if !cfg.CarryOverdue || idx < -OverdueLookbackDays {
				continue
			}
			idx = 0
		}
		if idx >= len(days) {
			continue
		}
		days[idx] += cfg.Weight(e)
	}
}

// selectGroup returns the events of one cohort. A rule without a group
// selects every event.
func selectGroup(events []models.BaseEvent, group string) []models.BaseEvent {
	if group == "" {
		return events
	}
	selected := make([]models.BaseEvent, 0, len(events))
	for _, e := range events {
		if e.Group == group {
			selected = append(selected, e)
		}
	}
	return selected
}

func total(days []int, cfg models.TaskConfig) int {
	var sum int
	for _, n := range days {
		sum += n
	}
	if !cfg.AggregateOnly {
		return sum
	}
	return int(decimal.NewFromInt(int64(sum)).Mul(cfg.Rate()).Div(hundred).Round(0).IntPart())
}

// sortedRules returns the rules in sequence order without touching cfg.
func sortedRules(rules []models.GroupRule) []models.GroupRule {
	out := append([]models.GroupRule(nil), rules...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
