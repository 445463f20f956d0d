package handlers

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/batch"
	"github.com/mamadbah2/farmreport/internal/service/forecast"
	"github.com/mamadbah2/farmreport/internal/service/reporting"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

type runBatchRequest struct {
	PeriodType  models.PeriodType `json:"period_type" binding:"required"`
	GeneratedOn string            `json:"generated_on"`
	FarmIDs     []int64           `json:"farm_ids"`
}

type failureResponse struct {
	FarmID int64  `json:"farm_id"`
	Error  string `json:"error"`
}

type batchResponse struct {
	Batch    models.ReportBatch `json:"batch"`
	Failures []failureResponse  `json:"failures,omitempty"`
}

func newBatchResponse(result batch.Result) batchResponse {
	resp := batchResponse{Batch: result.Batch}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, failureResponse{FarmID: f.FarmID, Error: f.Err.Error()})
	}
	return resp
}

type panelResponse struct {
	Panel    string                     `json:"panel"`
	SubPanel string                     `json:"sub_panel"`
	Sort     int                        `json:"sort"`
	Code1    string                     `json:"code_1,omitempty"`
	Code2    string                     `json:"code_2,omitempty"`
	Numbers  map[string]decimal.Decimal `json:"numbers,omitempty"`
	Texts    map[string]string          `json:"texts,omitempty"`
}

type reportResponse struct {
	Snapshot models.ReportSnapshot `json:"snapshot"`
	Panels   []panelResponse       `json:"panels"`
}

func newReportResponse(snapshot models.ReportSnapshot, views []reporting.PanelView) reportResponse {
	resp := reportResponse{Snapshot: snapshot, Panels: make([]panelResponse, 0, len(views))}
	for _, v := range views {
		resp.Panels = append(resp.Panels, panelResponse{
			Panel:    v.Key.Panel,
			SubPanel: v.Key.SubPanel,
			Sort:     v.Key.Sort,
			Code1:    v.Record.Code1,
			Code2:    v.Record.Code2,
			Numbers:  v.Record.Numbers,
			Texts:    v.Record.Texts,
		})
	}
	return resp
}

type scheduleGroupRequest struct {
	Group string `json:"group" binding:"required"`
}

type recordEventRequest struct {
	Task     models.TaskType `json:"task" binding:"required"`
	Group    string          `json:"group"`
	Date     string          `json:"date" binding:"required"`
	Quantity int             `json:"quantity"`
}

type forecastRowResponse struct {
	Task          models.TaskType     `json:"task"`
	Days          []int               `json:"days,omitempty"`
	Total         int                 `json:"total"`
	AggregateOnly bool                `json:"aggregate_only"`
	Method        models.StrategyKind `json:"method,omitempty"`
	Basis         string              `json:"basis"`
}

type forecastResponse struct {
	FarmID int64                 `json:"farm_id"`
	Dates  []string              `json:"dates"`
	Rows   []forecastRowResponse `json:"rows"`
}

func newForecastResponse(grid forecast.Grid) forecastResponse {
	resp := forecastResponse{FarmID: grid.FarmID}
	for _, d := range grid.Dates() {
		resp.Dates = append(resp.Dates, kst.Format(d))
	}
	for _, task := range models.TaskTypes {
		row := grid.Row(task)
		out := forecastRowResponse{
			Task:          task,
			Total:         row.Total,
			AggregateOnly: row.AggregateOnly,
			Method:        row.Method,
			Basis:         row.Basis,
		}
		if !row.AggregateOnly {
			out.Days = row.Days
		}
		resp.Rows = append(resp.Rows, out)
	}
	return resp
}

type taskConfigPayload struct {
	Method        models.StrategyKind `json:"method" binding:"required"`
	Label         string              `json:"label,omitempty"`
	OffsetDays    int                 `json:"offset_days,omitempty"`
	Rules         []models.GroupRule  `json:"rules,omitempty"`
	Source        models.TaskType     `json:"source,omitempty"`
	CarryOverdue  bool                `json:"carry_overdue"`
	AggregateOnly bool                `json:"aggregate_only"`
	CountHeads    bool                `json:"count_heads"`
	RatePercent   decimal.NullDecimal `json:"rate_percent"`
}

type farmConfigPayload struct {
	Tasks map[models.TaskType]taskConfigPayload `json:"tasks" binding:"required"`
}

func toConfigPayload(cfg models.FarmConfig) farmConfigPayload {
	out := farmConfigPayload{Tasks: make(map[models.TaskType]taskConfigPayload, len(cfg.Tasks))}
	for task, taskCfg := range cfg.Tasks {
		p := taskConfigPayload{
			Source:        taskCfg.Source,
			CarryOverdue:  taskCfg.CarryOverdue,
			AggregateOnly: taskCfg.AggregateOnly,
			CountHeads:    taskCfg.CountHeads,
			RatePercent:   taskCfg.RatePercent,
		}
		switch strategy := taskCfg.Strategy.(type) {
		case models.Uniform:
			p.Method = strategy.Kind()
			p.Label = strategy.Label
			p.OffsetDays = strategy.OffsetDays
		case models.Grouped:
			p.Method = strategy.Kind()
			p.Rules = strategy.Rules
		}
		out.Tasks[task] = p
	}
	return out
}

func (p farmConfigPayload) toFarmConfig(farmID int64) (models.FarmConfig, error) {
	cfg := models.FarmConfig{FarmID: farmID, Tasks: make(map[models.TaskType]models.TaskConfig, len(p.Tasks))}
	for task, tp := range p.Tasks {
		taskCfg := models.TaskConfig{
			Task:          task,
			Source:        tp.Source,
			CarryOverdue:  tp.CarryOverdue,
			AggregateOnly: tp.AggregateOnly,
			CountHeads:    tp.CountHeads,
			RatePercent:   tp.RatePercent,
		}
		switch tp.Method {
		case models.StrategyFarmDefault:
			taskCfg.Strategy = models.Uniform{Label: tp.Label, OffsetDays: tp.OffsetDays}
		case models.StrategyPerGroup:
			taskCfg.Strategy = models.Grouped{Rules: tp.Rules}
		default:
			return models.FarmConfig{}, fmt.Errorf("%w: unknown method %q for %s", forecast.ErrInvalidConfig, tp.Method, task)
		}
		cfg.Tasks[task] = taskCfg
	}
	return cfg, nil
}

func parseOptionalDate(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	return kst.ParseDate(value)
}
