package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mamadbah2/farmreport/pkg/kst"
)

func TestPeriodRange(t *testing.T) {
	// Wednesday
	generated := kst.Date(2025, time.July, 16)

	tests := []struct {
		period   PeriodType
		from, to time.Time
	}{
		{PeriodWeek, kst.Date(2025, time.July, 7), kst.Date(2025, time.July, 13)},
		{PeriodMonth, kst.Date(2025, time.June, 1), kst.Date(2025, time.June, 30)},
		{PeriodQuarter, kst.Date(2025, time.April, 1), kst.Date(2025, time.June, 30)},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			from, to := tt.period.Range(generated)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestWeekRangeOnMonday(t *testing.T) {
	// A Monday run in KST that is still Sunday in UTC.
	generated := time.Date(2025, time.July, 13, 22, 0, 0, 0, time.UTC)

	from, to := PeriodWeek.Range(generated)
	assert.Equal(t, kst.Date(2025, time.July, 7), from)
	assert.Equal(t, kst.Date(2025, time.July, 13), to)
}

func TestPeriodPreviousCrossesYear(t *testing.T) {
	from, to := PeriodQuarter.Previous(kst.Date(2025, time.January, 1))
	assert.Equal(t, kst.Date(2024, time.October, 1), from)
	assert.Equal(t, kst.Date(2024, time.December, 31), to)

	from, to = PeriodWeek.Previous(kst.Date(2025, time.January, 6))
	assert.Equal(t, kst.Date(2024, time.December, 30), from)
	assert.Equal(t, kst.Date(2025, time.January, 5), to)
}
