package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

type fakeRepository struct {
	rows     [][]interface{}
	appended [][]interface{}
	err      error
}

func (f *fakeRepository) AppendRow(_ context.Context, _ string, values []interface{}) error {
	f.appended = append(f.appended, values)
	return f.err
}

func (f *fakeRepository) ReadRange(context.Context, string) ([][]interface{}, error) {
	return f.rows, f.err
}

func TestEventsFiltersFarmAndDates(t *testing.T) {
	repo := &fakeRepository{rows: [][]interface{}{
		{float64(7), "weaning", "room-1", "2025-07-08", float64(11)},
		{"7", "MATING", "", "20250709"},
		{float64(8), "MATING", "", "2025-07-09", float64(1)},
		{float64(7), "MATING", "", "2025-07-20", float64(1)},
		{float64(7), "DIPPING", "", "2025-07-09", float64(1)},
		{float64(7), "MATING", "", "not a date", float64(1)},
		{float64(7)},
	}}
	source := NewEventSource(repo, "Events!A2:E", nil)

	events, err := source.Events(context.Background(), 7, kst.Date(2025, time.July, 7), kst.Date(2025, time.July, 13))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, models.BaseEvent{
		FarmID: 7, Task: models.TaskWeaning, Group: "room-1",
		Date: kst.Date(2025, time.July, 8), Quantity: 11,
	}, events[0])
	assert.Equal(t, models.TaskMating, events[1].Task)
	assert.Equal(t, 1, events[1].Heads())
}

func TestEventsPropagatesReadError(t *testing.T) {
	source := NewEventSource(&fakeRepository{err: errors.New("quota")}, "Events!A2:E", nil)

	_, err := source.Events(context.Background(), 7, kst.Date(2025, time.July, 7), kst.Date(2025, time.July, 13))
	assert.Error(t, err)
}

func TestRecordEventAppendsRow(t *testing.T) {
	repo := &fakeRepository{}
	source := NewEventSource(repo, "Events!A2:E", nil)

	err := source.RecordEvent(context.Background(), models.BaseEvent{
		FarmID: 7, Task: models.TaskFarrowing, Group: "sow-3", Date: kst.Date(2025, time.July, 8), Quantity: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{int64(7), "FARROWING", "sow-3", "2025-07-08", 12}}, repo.appended)
}
