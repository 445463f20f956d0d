package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/forecast"
	"github.com/mamadbah2/farmreport/internal/service/panels"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

// ForecastDays is the width of the upcoming-task calendar in a report.
const ForecastDays = 7

// Service turns a farm's recorded events and forecast configuration into the
// panel rows and snapshot of one report.
type Service struct {
	events    EventSource
	configs   ConfigStore
	rows      RowStore
	snapshots SnapshotStore
	codec     *panels.Codec
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires a new reporting service instance.
func NewService(events EventSource, configs ConfigStore, rows RowStore, snapshots SnapshotStore, codec *panels.Codec, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if codec == nil {
		codec = panels.Default()
	}
	return &Service{
		events:    events,
		configs:   configs,
		rows:      rows,
		snapshots: snapshots,
		codec:     codec,
		logger:    logger,
		now:       time.Now,
	}
}

// Produce generates one farm's report for batch: the forecast for the week
// after the period, the panel rows and the snapshot.
func (s *Service) Produce(ctx context.Context, batch models.ReportBatch, farmID int64) error {
	cfg, err := s.farmConfig(ctx, farmID)
	if err != nil {
		return err
	}

	priorFrom, priorTo := batch.PeriodType.Previous(batch.PeriodFrom)
	windowStart := kst.AddDays(batch.PeriodTo, 1)

	from := lookbackStart(cfg, windowStart)
	if priorFrom.Before(from) {
		from = priorFrom
	}
	recorded, err := s.events.Events(ctx, farmID, from, batch.PeriodTo)
	if err != nil {
		return fmt.Errorf("load farm events: %w", err)
	}
	set := groupByTask(recorded)

	grid, err := forecast.ProjectAll(farmID, cfg, set, windowStart, ForecastDays)
	if err != nil {
		return fmt.Errorf("project forecast: %w", err)
	}

	metrics := make(map[models.TaskType]models.TaskMetrics, len(models.TaskTypes))
	for _, task := range models.TaskTypes {
		count := periodCount(cfg.Tasks[task], set[task], batch.PeriodFrom, batch.PeriodTo)
		prior := periodCount(cfg.Tasks[task], set[task], priorFrom, priorTo)
		metrics[task] = models.TaskMetrics{
			Count:      count,
			PriorCount: prior,
			Delta:      count - prior,
			Forecast:   grid.Row(task).Total,
		}
	}

	rows, err := s.buildRows(batch, cfg, grid, metrics)
	if err != nil {
		return fmt.Errorf("encode panels: %w", err)
	}
	for i := range rows {
		rows[i].BatchID = batch.ID
		rows[i].FarmID = farmID
	}
	if err := s.rows.ReplaceRows(ctx, batch.ID, farmID, rows); err != nil {
		return fmt.Errorf("save panel rows: %w", err)
	}

	snapshot := models.ReportSnapshot{
		SnapshotKey: models.SnapshotKey{BatchID: batch.ID, FarmID: farmID},
		PeriodType:  batch.PeriodType,
		PeriodFrom:  batch.PeriodFrom,
		PeriodTo:    batch.PeriodTo,
		Metrics:     metrics,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.snapshots.CreateSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("save report snapshot: %w", err)
	}

	s.logger.Debug("farm report produced",
		zap.String("batch_id", batch.ID),
		zap.Int64("farm_id", farmID),
		zap.Int("events", len(recorded)),
		zap.Int("rows", len(rows)),
	)
	return nil
}

// Preview projects the farm's tasks for an arbitrary window without storing
// anything.
func (s *Service) Preview(ctx context.Context, farmID int64, windowStart time.Time, days int) (forecast.Grid, error) {
	if days <= 0 {
		return forecast.Grid{}, fmt.Errorf("%w: %d", forecast.ErrInvalidWindow, days)
	}
	cfg, err := s.farmConfig(ctx, farmID)
	if err != nil {
		return forecast.Grid{}, err
	}

	start := kst.StartOfDay(windowStart)
	recorded, err := s.events.Events(ctx, farmID, lookbackStart(cfg, start), kst.AddDays(start, days-1))
	if err != nil {
		return forecast.Grid{}, fmt.Errorf("load farm events: %w", err)
	}
	return forecast.ProjectAll(farmID, cfg, groupByTask(recorded), start, days)
}

// PanelView is a decoded panel row.
type PanelView struct {
	Key    models.PanelKey
	Record panels.Record
}

// Panels decodes every stored row of a farm's report.
func (s *Service) Panels(ctx context.Context, batchID string, farmID int64) ([]PanelView, error) {
	rows, err := s.rows.Rows(ctx, batchID, farmID)
	if err != nil {
		return nil, fmt.Errorf("load panel rows: %w", err)
	}

	views := make([]PanelView, 0, len(rows))
	for _, row := range rows {
		rec, err := s.codec.Decode(panels.LayoutName(row.Panel, row.SubPanel), row)
		if errors.Is(err, panels.ErrUnknownPanel) {
			s.logger.Warn("skip row of unknown panel", zap.String("panel", row.Panel), zap.String("sub_panel", row.SubPanel))
			continue
		}
		if err != nil {
			return nil, err
		}
		views = append(views, PanelView{Key: row.PanelKey, Record: rec})
	}
	return views, nil
}

// Snapshot returns a farm's stored report summary.
func (s *Service) Snapshot(ctx context.Context, batchID string, farmID int64) (models.ReportSnapshot, error) {
	return s.snapshots.Snapshot(ctx, models.SnapshotKey{BatchID: batchID, FarmID: farmID})
}

// Config returns the configuration reports of farmID are generated with,
// defaults included.
func (s *Service) Config(ctx context.Context, farmID int64) (models.FarmConfig, error) {
	return s.farmConfig(ctx, farmID)
}

// SaveConfig validates and stores a farm's forecast configuration.
func (s *Service) SaveConfig(ctx context.Context, cfg models.FarmConfig) error {
	if err := forecast.Validate(cfg); err != nil {
		return err
	}
	for task, taskCfg := range cfg.Tasks {
		taskCfg.Task = task
		cfg.Tasks[task] = taskCfg
	}
	if err := s.configs.SaveFarmConfig(ctx, cfg); err != nil {
		return fmt.Errorf("save forecast config: %w", err)
	}
	s.logger.Info("forecast config saved", zap.Int64("farm_id", cfg.FarmID), zap.Int("tasks", len(cfg.Tasks)))
	return nil
}

func (s *Service) farmConfig(ctx context.Context, farmID int64) (models.FarmConfig, error) {
	cfg, ok, err := s.configs.FarmConfig(ctx, farmID)
	if err != nil {
		return models.FarmConfig{}, fmt.Errorf("load forecast config: %w", err)
	}
	if !ok {
		s.logger.Debug("farm has no forecast config, using defaults", zap.Int64("farm_id", farmID))
		return forecast.DefaultFarmConfig(farmID), nil
	}
	cfg.FarmID = farmID
	return forecast.WithDefaults(cfg), nil
}

// lookbackStart is the earliest event date that can still land in a window
// starting at start under cfg.
func lookbackStart(cfg models.FarmConfig, start time.Time) time.Time {
	var maxOffset int
	for _, taskCfg := range cfg.Tasks {
		switch strategy := taskCfg.Strategy.(type) {
		case models.Uniform:
			maxOffset = max(maxOffset, strategy.OffsetDays)
		case models.Grouped:
			for _, rule := range strategy.Rules {
				maxOffset = max(maxOffset, rule.OffsetDays)
			}
		}
	}
	return kst.AddDays(start, -(maxOffset + forecast.OverdueLookbackDays))
}

func groupByTask(events []models.BaseEvent) forecast.EventSet {
	set := make(forecast.EventSet)
	for _, e := range events {
		set[e.Task] = append(set[e.Task], e)
	}
	return set
}

// periodCount counts task's events in [from, to] the way its forecast does,
// so the two are comparable.
func periodCount(cfg models.TaskConfig, events []models.BaseEvent, from, to time.Time) int {
	var n int
	start, end := kst.StartOfDay(from), kst.EndOfDay(to)
	for _, e := range events {
		if e.Date.Before(start) || e.Date.After(end) {
			continue
		}
		n += cfg.Weight(e)
	}
	return n
}
