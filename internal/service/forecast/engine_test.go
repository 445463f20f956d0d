package forecast

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

func event(group string, y int, m time.Month, d int) models.BaseEvent {
	return models.BaseEvent{FarmID: 1, Group: group, Date: kst.Date(y, m, d)}
}

func uniform(offset int) models.TaskConfig {
	return models.TaskConfig{Task: models.TaskMating, Strategy: models.Uniform{Label: "after weaning", OffsetDays: offset}}
}

func TestProjectUniformOffset(t *testing.T) {
	events := []models.BaseEvent{event("", 2025, 1, 1), event("", 2025, 1, 3)}

	row, err := Project(uniform(2), events, kst.Date(2025, 1, 1), 7)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 1, 0, 1, 0, 0}, row.Days)
	assert.Equal(t, 2, row.Total)
	assert.Equal(t, models.StrategyFarmDefault, row.Method)
}

func TestProjectDropsOutsideWindow(t *testing.T) {
	events := []models.BaseEvent{
		event("", 2024, 12, 20), // lands 12-22, before the window
		event("", 2025, 1, 6),   // lands on the window end, excluded
		event("", 2025, 1, 2),
	}

	row, err := Project(uniform(2), events, kst.Date(2025, 1, 1), 7)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 0, 0, 0}, row.Days)
}

func TestProjectCarryOverdue(t *testing.T) {
	cfg := uniform(2)
	cfg.CarryOverdue = true
	events := []models.BaseEvent{event("", 2024, 12, 20), event("", 2025, 1, 2)}

	row, err := Project(cfg, events, kst.Date(2025, 1, 1), 7)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 0, 1, 0, 0, 0}, row.Days)
}

func TestProjectInvalidWindow(t *testing.T) {
	_, err := Project(uniform(2), nil, kst.Date(2025, 1, 1), 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = ProjectAll(1, DefaultFarmConfig(1), nil, kst.Date(2025, 1, 1), -3)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestProjectEmptyInputsYieldZeroGrid(t *testing.T) {
	row, err := Project(uniform(2), nil, kst.Date(2025, 1, 1), 7)
	require.NoError(t, err)
	assert.Equal(t, make([]int, 7), row.Days)

	noRules := models.TaskConfig{Task: models.TaskVaccination, Strategy: models.Grouped{}}
	row, err = Project(noRules, []models.BaseEvent{event("A", 2025, 1, 1)}, kst.Date(2025, 1, 1), 7)
	require.NoError(t, err)
	assert.Equal(t, make([]int, 7), row.Days)
	assert.Equal(t, "(per-group rules) no rules selected", row.Basis)
}

func TestProjectIsOffsetLinear(t *testing.T) {
	events := []models.BaseEvent{
		event("", 2025, 1, 1), event("", 2025, 1, 4), event("", 2025, 1, 9), event("", 2025, 1, 12),
	}
	cfg := uniform(3)

	long, err := Project(cfg, events, kst.Date(2025, 1, 3), 14)
	require.NoError(t, err)
	short, err := Project(cfg, events, kst.Date(2025, 1, 3), 7)
	require.NoError(t, err)

	assert.Equal(t, short.Days, long.Days[:7])
}

func TestProjectIsAdditiveOverRules(t *testing.T) {
	events := []models.BaseEvent{
		event("gilt", 2025, 3, 1), event("gilt", 2025, 3, 2),
		event("sow", 2025, 3, 1), event("sow", 2025, 3, 4),
	}
	gilt := models.GroupRule{Seq: 1, Label: "gilt booster", Group: "gilt", OffsetDays: 3}
	sow := models.GroupRule{Seq: 2, Label: "sow booster", Group: "sow", OffsetDays: 1}
	project := func(rules ...models.GroupRule) []int {
		cfg := models.TaskConfig{Task: models.TaskVaccination, Strategy: models.Grouped{Rules: rules}}
		row, err := Project(cfg, events, kst.Date(2025, 3, 1), 7)
		require.NoError(t, err)
		return row.Days
	}

	both := project(gilt, sow)
	onlyGilt := project(gilt)
	onlySow := project(sow)

	for i := range both {
		assert.Equal(t, onlyGilt[i]+onlySow[i], both[i], "day %d", i)
	}
	assert.Equal(t, []int{0, 1, 0, 1, 2, 0, 0}, both)
}

func TestProjectCountsEventsUnlessHeadsAreCounted(t *testing.T) {
	events := []models.BaseEvent{
		{Date: kst.Date(2025, 1, 1), Quantity: 11},
		{Date: kst.Date(2025, 1, 2), Quantity: 9},
	}

	weaning := models.TaskConfig{Task: models.TaskWeaning, Strategy: models.Uniform{Label: "lactation", OffsetDays: 0}}
	row, err := Project(weaning, events, kst.Date(2025, 1, 1), 7)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 0, 0, 0, 0, 0}, row.Days)
	assert.Equal(t, 2, row.Total)

	shipment := models.TaskConfig{
		Task:          models.TaskShipment,
		Strategy:      models.Uniform{Label: "shipment age", OffsetDays: 0},
		AggregateOnly: true,
		CountHeads:    true,
		RatePercent:   decimal.NewNullDecimal(decimal.NewFromInt(90)),
	}
	row, err = Project(shipment, events, kst.Date(2025, 1, 1), 7)
	require.NoError(t, err)
	assert.Equal(t, []int{11, 9, 0, 0, 0, 0, 0}, row.Days)
	assert.Equal(t, 18, row.Total)
	assert.True(t, row.AggregateOnly)
}

func TestProjectRate(t *testing.T) {
	events := []models.BaseEvent{{Date: kst.Date(2025, 1, 1), Quantity: 20}}
	cfg := models.TaskConfig{
		Task:          models.TaskShipment,
		Strategy:      models.Uniform{OffsetDays: 0},
		AggregateOnly: true,
		CountHeads:    true,
	}

	row, err := Project(cfg, events, kst.Date(2025, 1, 1), 7)
	require.NoError(t, err)
	assert.Equal(t, 20, row.Total, "unset rate is 100%")

	cfg.RatePercent = decimal.NewNullDecimal(decimal.Zero)
	row, err = Project(cfg, events, kst.Date(2025, 1, 1), 7)
	require.NoError(t, err)
	assert.Equal(t, 0, row.Total)
	assert.Equal(t, 20, row.Days[0])
}

func TestProjectCarryOverdueIsBounded(t *testing.T) {
	cfg := uniform(7)
	cfg.CarryOverdue = true
	start := kst.Date(2025, 7, 20)
	events := []models.BaseEvent{
		{Date: kst.AddDays(start, -7-OverdueLookbackDays)},   // due exactly at the bound
		{Date: kst.AddDays(start, -7-OverdueLookbackDays-1)}, // one day past it
		{Date: kst.AddDays(start, -60)},
		{Date: kst.AddDays(start, -170)},
	}

	row, err := Project(cfg, events, start, 7)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 0, 0, 0, 0, 0}, row.Days)
}

func TestPending(t *testing.T) {
	weaned := func(sow string, d int) models.BaseEvent {
		return models.BaseEvent{Task: models.TaskWeaning, Group: sow, Date: kst.Date(2025, 7, d)}
	}
	mated := func(sow string, d int) models.BaseEvent {
		return models.BaseEvent{Task: models.TaskMating, Group: sow, Date: kst.Date(2025, 7, d)}
	}

	base := []models.BaseEvent{
		weaned("sow-1", 1),
		weaned("sow-1", 10),
		weaned("sow-2", 5),
		weaned("sow-3", 8),
		weaned("", 3),
	}
	followups := []models.BaseEvent{
		mated("sow-1", 12), // answers the 07-10 weaning, not the older one
		mated("sow-2", 4),  // before the weaning, answers nothing
		mated("sow-3", 8),  // same day still answers
		mated("", 4),
	}

	assert.Equal(t, []models.BaseEvent{weaned("sow-1", 1), weaned("sow-2", 5), weaned("", 3)}, Pending(base, followups))
	assert.Equal(t, base, Pending(base, nil))
}

func TestProjectAllLeavesOutAnsweredEvents(t *testing.T) {
	events := EventSet{
		models.TaskWeaning: {
			{Group: "sow-1", Date: kst.Date(2025, 7, 10)},
			{Group: "sow-2", Date: kst.Date(2025, 7, 10)},
		},
		models.TaskMating: {{Group: "sow-1", Date: kst.Date(2025, 7, 15)}},
	}

	grid, err := ProjectAll(1, DefaultFarmConfig(1), events, kst.Date(2025, 7, 14), 7)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 0, 0, 0}, grid.Row(models.TaskMating).Days)
}

func TestProjectUsesKSTCalendar(t *testing.T) {
	// 2025-01-01 16:30 UTC is already 2025-01-02 in KST.
	e := models.BaseEvent{Date: time.Date(2025, 1, 1, 16, 30, 0, 0, time.UTC)}
	windowStart := time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC) // 2025-01-02 00:00 KST

	row, err := Project(uniform(0), []models.BaseEvent{e}, windowStart, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 0}, row.Days)
}

func TestProjectAllFillsEveryTask(t *testing.T) {
	events := EventSet{
		models.TaskMating: {event("", 2024, 9, 10)},
	}

	grid, err := ProjectAll(7, DefaultFarmConfig(7), events, kst.Date(2025, 1, 1), 7)
	require.NoError(t, err)

	require.Len(t, grid.Rows, len(models.TaskTypes))
	// a mating on 2024-09-10 farrows 115 days later, on 2025-01-03
	assert.Equal(t, []int{0, 0, 1, 0, 0, 0, 0}, grid.Row(models.TaskFarrowing).Days)
	assert.Equal(t, 0, grid.Row(models.TaskPregnancyCheck).Total)
	assert.Equal(t, 0, grid.Row(models.TaskMating).Total)
	assert.Len(t, grid.Dates(), 7)
	assert.Equal(t, kst.Date(2025, 1, 7), grid.Dates()[6])
}

func TestBasis(t *testing.T) {
	assert.Equal(t, "(farm default) gestation (115 days)",
		Basis(models.TaskConfig{Strategy: models.Uniform{Label: "gestation", OffsetDays: 115}}))

	grouped := models.TaskConfig{Strategy: models.Grouped{Rules: []models.GroupRule{
		{Seq: 2, Label: "post-accident mating", OffsetDays: 0},
		{Seq: 1, Label: "post-weaning mating", OffsetDays: 7},
	}}}
	assert.Equal(t, "(per-group rules) post-weaning mating (7 days), post-accident mating (0 days)", Basis(grouped))

	assert.Equal(t, "not configured", Basis(models.TaskConfig{}))
}

func TestWithDefaultsKeepsConfiguredTasks(t *testing.T) {
	cfg := models.FarmConfig{FarmID: 3, Tasks: map[models.TaskType]models.TaskConfig{
		models.TaskWeaning: {Strategy: models.Uniform{Label: "lactation", OffsetDays: 28}},
	}}

	merged := WithDefaults(cfg)
	assert.Equal(t, models.Uniform{Label: "lactation", OffsetDays: 28}, merged.Tasks[models.TaskWeaning].Strategy)
	assert.Equal(t, models.TaskWeaning, merged.Tasks[models.TaskWeaning].Task)
	assert.Equal(t, models.TaskFarrowing, merged.Tasks[models.TaskWeaning].SourceTask())
	assert.Equal(t, models.Uniform{Label: "gestation", OffsetDays: DefaultGestationDays}, merged.Tasks[models.TaskFarrowing].Strategy)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(DefaultFarmConfig(1)))

	cases := map[string]models.TaskConfig{
		"unknown source":  {Strategy: models.Uniform{OffsetDays: 1}, Source: "DIPPING"},
		"negative offset": {Strategy: models.Uniform{OffsetDays: -1}},
		"negative rate":   {Strategy: models.Uniform{OffsetDays: 1}, RatePercent: decimal.NewNullDecimal(decimal.NewFromInt(-5))},
		"duplicate rule": {Strategy: models.Grouped{Rules: []models.GroupRule{
			{Seq: 1, OffsetDays: 3},
			{Seq: 1, OffsetDays: 4},
		}}},
		"mismatched task": {Task: models.TaskWeaning, Strategy: models.Uniform{OffsetDays: 1}},
	}
	for name, taskCfg := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := models.FarmConfig{FarmID: 1, Tasks: map[models.TaskType]models.TaskConfig{models.TaskMating: taskCfg}}
			assert.ErrorIs(t, Validate(cfg), ErrInvalidConfig)
		})
	}

	unknown := models.FarmConfig{Tasks: map[models.TaskType]models.TaskConfig{"DIPPING": {}}}
	assert.ErrorIs(t, Validate(unknown), ErrInvalidConfig)
}
