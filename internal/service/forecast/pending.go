package forecast

import (
	"sort"
	"time"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

// Pending returns the base events no follow-up has answered yet. Within a
// group, each follow-up answers the latest open base event on or before its
// day, so a sow weaned twice and mated once is still due once. Events without
// a group cannot be told apart and are always kept.
func Pending(base, followups []models.BaseEvent) []models.BaseEvent {
	if len(base) == 0 || len(followups) == 0 {
		return base
	}

	type mark struct {
		day  time.Time
		base int // index into base, -1 for a follow-up
	}
	timelines := make(map[string][]mark)
	for i, e := range base {
		if e.Group != "" {
			timelines[e.Group] = append(timelines[e.Group], mark{day: kst.StartOfDay(e.Date), base: i})
		}
	}
	if len(timelines) == 0 {
		return base
	}
	for _, f := range followups {
		if marks, ok := timelines[f.Group]; ok {
			timelines[f.Group] = append(marks, mark{day: kst.StartOfDay(f.Date), base: -1})
		}
	}

	answered := make([]bool, len(base))
	for _, marks := range timelines {
		// same day: the base event comes first so the follow-up can answer it
		sort.SliceStable(marks, func(i, j int) bool {
			if !marks[i].day.Equal(marks[j].day) {
				return marks[i].day.Before(marks[j].day)
			}
			return marks[i].base >= 0 && marks[j].base < 0
		})

		var open []int
		for _, m := range marks {
			if m.base >= 0 {
				open = append(open, m.base)
				continue
			}
			if n := len(open); n > 0 {
				answered[open[n-1]] = true
				open = open[:n-1]
			}
		}
	}

	pending := make([]models.BaseEvent, 0, len(base))
	for i, e := range base {
		if !answered[i] {
			pending = append(pending, e)
		}
	}
	return pending
}
