// Package entitlement decides which farms may receive reports at a given
// instant, from an append-only history of subscription windows.
package entitlement

import (
	"time"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

// Covers reports whether rec grants the service at asOf. Coverage and stop
// dates are calendar days compared at 23:59:59 KST, so the last covered day
// is fully inclusive and the stop day itself is still usable.
func Covers(rec models.EntitlementRecord, asOf time.Time) bool {
	if !rec.Enabled {
		return false
	}
	if asOf.Before(kst.StartOfDay(rec.CoverageStart)) {
		return false
	}
	if asOf.After(kst.EndOfDay(rec.CoverageEnd)) {
		return false
	}
	return kst.EndOfDay(rec.StopOn).After(asOf)
}

// Resolve returns the record governing asOf. Overlapping windows are
// accepted as they are: the latest registration date wins and, between
// records registered on the same day, the one later in history wins.
func Resolve(history []models.EntitlementRecord, asOf time.Time) (models.EntitlementRecord, bool) {
	var (
		best  models.EntitlementRecord
		found bool
	)
	for _, rec := range history {
		if !Covers(rec, asOf) {
			continue
		}
		if !found || !rec.RegisteredOn.Before(best.RegisteredOn) {
			best = rec
			found = true
		}
	}
	return best, found
}
