package models

import "time"

// PeriodType enumerates the report cadences.
type PeriodType string

const (
	PeriodWeek    PeriodType = "WEEK"
	PeriodMonth   PeriodType = "MONTH"
	PeriodQuarter PeriodType = "QUARTER"
)

// IsValid reports whether p is a known cadence.
func (p PeriodType) IsValid() bool {
	switch p {
	case PeriodWeek, PeriodMonth, PeriodQuarter:
		return true
	}
	return false
}

// BatchStatus is the lifecycle state of a ReportBatch.
type BatchStatus string

const (
	BatchReady   BatchStatus = "READY"
	BatchRunning BatchStatus = "RUNNING"
	BatchDone    BatchStatus = "DONE"
	BatchError   BatchStatus = "ERROR"
)

// IsTerminal reports whether no further transition is allowed.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchDone || s == BatchError
}

// Trigger records what started a batch.
type Trigger string

const (
	TriggerScheduled Trigger = "SCHEDULED"
	TriggerManual    Trigger = "MANUAL"
)

// ReportBatch is one generation run for a period type and date range.
type ReportBatch struct {
	ID            string        `bson:"_id" json:"id"`
	PeriodType    PeriodType    `bson:"period_type" json:"period_type"`
	GeneratedOn   time.Time     `bson:"generated_on" json:"generated_on"`
	PeriodFrom    time.Time     `bson:"period_from" json:"period_from"`
	PeriodTo      time.Time     `bson:"period_to" json:"period_to"`
	Trigger       Trigger       `bson:"trigger" json:"trigger"`
	ScheduleGroup string        `bson:"schedule_group,omitempty" json:"schedule_group,omitempty"`
	TargetCount   int           `bson:"target_count" json:"target_count"`
	CompleteCount int           `bson:"complete_count" json:"complete_count"`
	ErrorCount    int           `bson:"error_count" json:"error_count"`
	Status        BatchStatus   `bson:"status" json:"status"`
	FailureReason string        `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	StartedAt     *time.Time    `bson:"started_at,omitempty" json:"started_at,omitempty"`
	FinishedAt    *time.Time    `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
	Elapsed       time.Duration `bson:"elapsed" json:"elapsed"`
}
