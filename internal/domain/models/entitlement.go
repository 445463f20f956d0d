package models

import (
	"time"

	"github.com/mamadbah2/farmreport/pkg/kst"
)

// RegistrationOrigin records how an entitlement entry was created.
type RegistrationOrigin string

const (
	OriginManual    RegistrationOrigin = "MANUAL"
	OriginScheduled RegistrationOrigin = "SCHEDULED"
)

// DefaultScheduleGroup is the run slot assigned when none is recorded.
const DefaultScheduleGroup = "AM7"

// NeverStop is the stop-date sentinel for entries without an explicit stop.
var NeverStop = kst.Date(9999, time.December, 31)

// EntitlementRecord is one append-only history entry of a farm's right to
// use the service, keyed by (FarmID, RegisteredOn). Dates are calendar days
// at midnight KST.
type EntitlementRecord struct {
	FarmID        int64              `bson:"farm_id" json:"farm_id"`
	RegisteredOn  time.Time          `bson:"registered_on" json:"registered_on"`
	Active        bool               `bson:"active" json:"active"`
	CoverageStart time.Time          `bson:"coverage_start" json:"coverage_start"`
	CoverageEnd   time.Time          `bson:"coverage_end" json:"coverage_end"`
	StopOn        time.Time          `bson:"stop_on" json:"stop_on"`
	Origin        RegistrationOrigin `bson:"origin" json:"origin"`
	Enabled       bool               `bson:"enabled" json:"enabled"`
	ScheduleGroup string             `bson:"schedule_group,omitempty" json:"schedule_group,omitempty"`
}

// Group returns the schedule group, falling back to the default slot.
func (r EntitlementRecord) Group() string {
	if r.ScheduleGroup == "" {
		return DefaultScheduleGroup
	}
	return r.ScheduleGroup
}
