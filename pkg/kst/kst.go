// Package kst maps host time onto the fixed UTC+9 business calendar used for
// every report boundary, regardless of the timezone the process runs in.
package kst

import (
	"fmt"
	"strings"
	"time"
)

const (
	// CompactLayout is the YYYYMMDD form used for stored calendar dates.
	CompactLayout = "20060102"
	// DateLayout is the dashed form used in APIs and sheets.
	DateLayout = "2006-01-02"
)

// Location is the fixed +09:00 business timezone. It never observes DST.
var Location = time.FixedZone("KST", 9*60*60)

// Now returns the current instant expressed in KST.
func Now() time.Time {
	return In(time.Now())
}

// In expresses t in KST without changing the instant.
func In(t time.Time) time.Time {
	return t.In(Location)
}

// Today returns midnight KST of the business day containing now.
func Today(now time.Time) time.Time {
	return StartOfDay(now)
}

// Date builds midnight KST of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, Location)
}

// StartOfDay truncates t to 00:00:00 KST of its business day.
func StartOfDay(t time.Time) time.Time {
	k := In(t)
	return Date(k.Year(), k.Month(), k.Day())
}

// EndOfDay returns 23:59:59 KST of t's business day, the instant at which a
// calendar date stops being covered.
func EndOfDay(t time.Time) time.Time {
	k := In(t)
	return time.Date(k.Year(), k.Month(), k.Day(), 23, 59, 59, 0, Location)
}

// AddDays moves a calendar date by n days, keeping it at midnight KST.
func AddDays(d time.Time, n int) time.Time {
	k := StartOfDay(d)
	return Date(k.Year(), k.Month(), k.Day()+n)
}

// DaysBetween counts whole calendar days from a to b in KST. It is negative
// when b is before a.
func DaysBetween(a, b time.Time) int {
	from := StartOfDay(a)
	to := StartOfDay(b)
	return int(to.Sub(from).Hours() / 24)
}

// ParseDate reads a calendar date in either YYYYMMDD or YYYY-MM-DD form and
// returns midnight KST of that day.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return time.Time{}, fmt.Errorf("empty date")
	case len(value) >= len(DateLayout) && value[4] == '-':
		return time.ParseInLocation(DateLayout, value[:len(DateLayout)], Location)
	case len(value) == len(CompactLayout):
		return time.ParseInLocation(CompactLayout, value, Location)
	default:
		return time.Time{}, fmt.Errorf("unrecognised date %q", value)
	}
}

// Compact formats t's KST calendar day as YYYYMMDD.
func Compact(t time.Time) string {
	return In(t).Format(CompactLayout)
}

// Format formats t's KST calendar day as YYYY-MM-DD.
func Format(t time.Time) string {
	return In(t).Format(DateLayout)
}
