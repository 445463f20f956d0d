package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/forecast"
	"github.com/mamadbah2/farmreport/internal/service/panels"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

const dayLabelLayout = "01.02"

// fieldName is the panel field a task is stored under.
func fieldName(task models.TaskType) string {
	return strings.ToLower(string(task))
}

func (s *Service) buildRows(batch models.ReportBatch, cfg models.FarmConfig, grid forecast.Grid, metrics map[models.TaskType]models.TaskMetrics) ([]models.PanelRow, error) {
	var rows []models.PanelRow
	add := func(layout string, sort int, rec panels.Record) error {
		row, err := s.codec.Encode(layout, rec)
		if err != nil {
			return err
		}
		row.Sort = sort
		rows = append(rows, row)
		return nil
	}

	windowEnd := kst.AddDays(grid.Start, grid.Days-1)

	configRec := panels.NewRecord()
	for _, task := range models.TaskTypes {
		if uniform, ok := cfg.Tasks[task].Strategy.(models.Uniform); ok {
			configRec.SetInt(fieldName(task)+"_offset", uniform.OffsetDays)
		}
	}
	configRec.SetNumber("shipment_rate", cfg.Tasks[models.TaskShipment].Rate())
	if err := add(panels.LayoutConfig, 1, configRec); err != nil {
		return nil, err
	}

	_, week := grid.Start.ISOWeek()
	summary := panels.NewRecord().
		SetInt("week_no", week).
		SetText("period_from", kst.Format(grid.Start)).
		SetText("period_to", kst.Format(windowEnd))
	help := panels.NewRecord()
	method := panels.NewRecord()
	for _, task := range models.TaskTypes {
		row := grid.Row(task)
		summary.SetInt(fieldName(task), row.Total)
		help.SetText(fieldName(task), row.Basis)
		method.SetText(fieldName(task), string(row.Method))
	}
	if window, ok := shipmentSourceWindow(cfg.Tasks[models.TaskShipment], grid.Start, windowEnd); ok {
		help.SetText("shipment_window", window)
	}
	if err := add(panels.LayoutSchedule, 1, summary); err != nil {
		return nil, err
	}
	if err := add(panels.LayoutScheduleHelp, 1, help); err != nil {
		return nil, err
	}
	if err := add(panels.LayoutScheduleMethod, 1, method); err != nil {
		return nil, err
	}

	dates := grid.Dates()
	sort := 0
	for _, task := range models.TaskTypes {
		row := grid.Row(task)
		if row.AggregateOnly {
			continue
		}
		sort++
		cal := panels.NewRecord()
		cal.Code1 = string(task)
		for i, n := range row.Days {
			if i >= models.SlotCount {
				break
			}
			cal.SetInt(fmt.Sprintf("day_%d", i+1), n)
			cal.SetText(fmt.Sprintf("label_%d", i+1), kst.In(dates[i]).Format(dayLabelLayout))
		}
		if err := add(panels.LayoutScheduleCal, sort, cal); err != nil {
			return nil, err
		}
	}

	last := panels.NewRecord().
		SetText("period_from", kst.Format(batch.PeriodFrom)).
		SetText("period_to", kst.Format(batch.PeriodTo))
	for _, task := range models.TaskTypes {
		m := metrics[task]
		last.SetInt(fieldName(task), m.Count)
		last.SetInt(fieldName(task)+"_prior", m.PriorCount)
	}
	if err := add(panels.LayoutLastPeriod, 1, last); err != nil {
		return nil, err
	}
	return rows, nil
}

// shipmentSourceWindow is the range of source events that ship inside the
// window, shown so readers can trace the aggregate back to its events.
func shipmentSourceWindow(cfg models.TaskConfig, start, end time.Time) (string, bool) {
	uniform, ok := cfg.Strategy.(models.Uniform)
	if !ok {
		return "", false
	}
	from := kst.AddDays(start, -uniform.OffsetDays)
	to := kst.AddDays(end, -uniform.OffsetDays)
	return fmt.Sprintf("%s ~ %s", kst.Format(from), kst.Format(to)), true
}
