package models

import "time"

// SnapshotKey identifies one farm's report within a batch.
type SnapshotKey struct {
	BatchID string `bson:"batch_id" json:"batch_id"`
	FarmID  int64  `bson:"farm_id" json:"farm_id"`
}

// TaskMetrics summarises one task type for a report period.
type TaskMetrics struct {
	Count      int `bson:"count" json:"count"`
	PriorCount int `bson:"prior_count" json:"prior_count"`
	Delta      int `bson:"delta" json:"delta"`
	Forecast   int `bson:"forecast" json:"forecast"`
}

// ReportSnapshot is one farm's summary for one batch. Everything except the
// share token is immutable once created.
type ReportSnapshot struct {
	SnapshotKey `bson:",inline"`

	PeriodType     PeriodType               `bson:"period_type" json:"period_type"`
	PeriodFrom     time.Time                `bson:"period_from" json:"period_from"`
	PeriodTo       time.Time                `bson:"period_to" json:"period_to"`
	Metrics        map[TaskType]TaskMetrics `bson:"metrics" json:"metrics"`
	ShareToken     string                   `bson:"share_token,omitempty" json:"share_token,omitempty"`
	TokenExpiresOn *time.Time               `bson:"token_expires_on,omitempty" json:"token_expires_on,omitempty"`
	CreatedAt      time.Time                `bson:"created_at" json:"created_at"`
}
