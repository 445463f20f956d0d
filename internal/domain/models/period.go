package models

import (
	"time"

	"github.com/mamadbah2/farmreport/pkg/kst"
)

// Range returns the closed calendar range a report generated on the given
// day covers: the previous Monday to Sunday week, the previous month or the
// previous quarter, all in KST.
func (p PeriodType) Range(generatedOn time.Time) (from, to time.Time) {
	today := kst.Today(generatedOn)
	switch p {
	case PeriodMonth:
		first := kst.Date(today.Year(), today.Month(), 1)
		return first.AddDate(0, -1, 0), kst.AddDays(first, -1)
	case PeriodQuarter:
		qMonth := time.Month((int(today.Month())-1)/3*3 + 1)
		first := kst.Date(today.Year(), qMonth, 1)
		return first.AddDate(0, -3, 0), kst.AddDays(first, -1)
	default:
		sinceMonday := (int(today.Weekday()) + 6) % 7
		monday := kst.AddDays(today, -sinceMonday)
		return kst.AddDays(monday, -7), kst.AddDays(monday, -1)
	}
}

// Previous returns the period of the same cadence right before the one
// starting at from.
func (p PeriodType) Previous(from time.Time) (time.Time, time.Time) {
	start := kst.StartOfDay(from)
	switch p {
	case PeriodMonth:
		return start.AddDate(0, -1, 0), kst.AddDays(start, -1)
	case PeriodQuarter:
		return start.AddDate(0, -3, 0), kst.AddDays(start, -1)
	default:
		return kst.AddDays(start, -7), kst.AddDays(start, -1)
	}
}
