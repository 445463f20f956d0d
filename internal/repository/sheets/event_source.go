package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

// Event rows hold, in order: farm id, task type, group, date, quantity.
const eventColumns = 5

// EventSource serves recorded farm task events from a spreadsheet range.
type EventSource struct {
	repo       Repository
	sheetRange string
	logger     *zap.Logger
}

// NewEventSource reads events from sheetRange of repo.
func NewEventSource(repo Repository, sheetRange string, logger *zap.Logger) *EventSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventSource{repo: repo, sheetRange: sheetRange, logger: logger}
}

// Events returns the farm's events dated within [from, to] in KST. Malformed
// rows are skipped.
func (s *EventSource) Events(ctx context.Context, farmID int64, from, to time.Time) ([]models.BaseEvent, error) {
	rows, err := s.repo.ReadRange(ctx, s.sheetRange)
	if err != nil {
		return nil, fmt.Errorf("load events range: %w", err)
	}

	start, end := kst.StartOfDay(from), kst.EndOfDay(to)
	var out []models.BaseEvent
	for i, row := range rows {
		if len(row) < eventColumns-1 {
			continue
		}

		rowFarm, err := parseInt64(row[0])
		if err != nil || rowFarm != farmID {
			continue
		}

		event, err := parseEvent(row)
		if err != nil {
			s.logger.Debug("skip malformed event row", zap.Int("row", i+1), zap.Any("values", row), zap.Error(err))
			continue
		}
		if event.Date.Before(start) || event.Date.After(end) {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

// RecordEvent appends e as a new event row.
func (s *EventSource) RecordEvent(ctx context.Context, e models.BaseEvent) error {
	values := []interface{}{e.FarmID, string(e.Task), e.Group, kst.Format(e.Date), e.Quantity}
	if err := s.repo.AppendRow(ctx, s.sheetRange, values); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

func parseEvent(row []interface{}) (models.BaseEvent, error) {
	farmID, err := parseInt64(row[0])
	if err != nil {
		return models.BaseEvent{}, fmt.Errorf("farm id: %w", err)
	}

	task := models.TaskType(strings.ToUpper(strings.TrimSpace(fmt.Sprint(row[1]))))
	if !task.IsValid() {
		return models.BaseEvent{}, fmt.Errorf("unknown task %q", task)
	}

	date, err := kst.ParseDate(fmt.Sprint(row[3]))
	if err != nil {
		return models.BaseEvent{}, fmt.Errorf("date: %w", err)
	}

	event := models.BaseEvent{
		FarmID: farmID,
		Task:   task,
		Group:  strings.TrimSpace(fmt.Sprint(row[2])),
		Date:   date,
	}
	if len(row) >= eventColumns && fmt.Sprint(row[4]) != "" {
		qty, err := parseInt(row[4])
		if err != nil {
			return models.BaseEvent{}, fmt.Errorf("quantity: %w", err)
		}
		event.Quantity = qty
	}
	return event, nil
}

// parseInt accepts the float64 cells the API returns for unformatted numbers.
func parseInt(value interface{}) (int, error) {
	n, err := parseInt64(value)
	return int(n), err
}

func parseInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case float64:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	}
	str := strings.TrimSpace(fmt.Sprint(value))
	if str == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	return strconv.ParseInt(str, 10, 64)
}
