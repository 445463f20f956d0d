package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/farmreport/internal/config"
	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/batch"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

type fakeRunner struct {
	requests []batch.Request
	result   batch.Result
	err      error
}

func (f *fakeRunner) Run(_ context.Context, req batch.Request) (batch.Result, error) {
	f.requests = append(f.requests, req)
	return f.result, f.err
}

type fakeNotifier struct {
	to, body string
	err      error
}

func (f *fakeNotifier) SendText(_ context.Context, to, body string) (string, error) {
	f.to, f.body = to, body
	return "wamid", f.err
}

func doneResult() batch.Result {
	return batch.Result{Batch: models.ReportBatch{
		ID:            "b-1",
		PeriodType:    models.PeriodWeek,
		PeriodFrom:    kst.Date(2025, time.July, 7),
		PeriodTo:      kst.Date(2025, time.July, 13),
		Status:        models.BatchDone,
		TargetCount:   3,
		CompleteCount: 2,
		ErrorCount:    1,
	}}
}

func TestJobsCoverEveryCadence(t *testing.T) {
	jobs := Jobs(config.ReportingConfig{WeekAMCron: "0 7 * * 1", WeekPMCron: "0 14 * * 1", MonthCron: "0 6 1 * *", QuarterCron: "0 5 1 1,4,7,10 *"})

	require.Len(t, jobs, 4)
	assert.Equal(t, "AM7", jobs[0].ScheduleGroup)
	assert.Equal(t, "PM2", jobs[1].ScheduleGroup)
	assert.Equal(t, models.PeriodMonth, jobs[2].PeriodType)
	assert.Equal(t, models.PeriodQuarter, jobs[3].PeriodType)
}

func TestRunJobSendsScheduledRequestAndSummary(t *testing.T) {
	runner := &fakeRunner{result: doneResult()}
	notifier := &fakeNotifier{}
	s := NewScheduler(nil, runner, notifier, "224600000000", nil)
	now := time.Date(2025, time.July, 13, 22, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	job := Job{Name: "weekly-am", PeriodType: models.PeriodWeek, ScheduleGroup: "AM7"}
	s.runJob(job)

	require.Len(t, runner.requests, 1)
	assert.Equal(t, batch.Request{
		PeriodType:    models.PeriodWeek,
		GeneratedOn:   now,
		ScheduleGroup: "AM7",
		Trigger:       models.TriggerScheduled,
	}, runner.requests[0])
	assert.Equal(t, "224600000000", notifier.to)
	assert.Equal(t, "week report 2025-07-07 ~ 2025-07-13 [AM7]: DONE, 2/3 farms done, 1 failed. batch b-1", notifier.body)
}

func TestRunJobReportsBatchError(t *testing.T) {
	result := doneResult()
	result.Batch.Status = models.BatchError
	result.Batch.FailureReason = "history unavailable"
	runner := &fakeRunner{result: result, err: errors.New("resolve batch scope: history unavailable")}
	notifier := &fakeNotifier{}
	s := NewScheduler(nil, runner, notifier, "1", nil)

	s.runJob(Job{Name: "monthly", PeriodType: models.PeriodWeek})

	assert.Equal(t, "week report 2025-07-07 ~ 2025-07-13: ERROR (history unavailable). batch b-1", notifier.body)
}

func TestRunJobWithoutBatchSkipsNotification(t *testing.T) {
	runner := &fakeRunner{err: errors.New("invalid period type")}
	notifier := &fakeNotifier{}
	s := NewScheduler(nil, runner, notifier, "1", nil)

	s.runJob(Job{Name: "broken"})

	assert.Empty(t, notifier.body)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler([]Job{{Name: "weekly-am", Spec: "every monday"}}, &fakeRunner{}, nil, "", nil)

	err := s.Start()
	assert.Error(t, err)
}

func TestStartRegistersJobs(t *testing.T) {
	jobs := Jobs(config.ReportingConfig{WeekAMCron: "0 7 * * 1", WeekPMCron: "0 14 * * 1", MonthCron: "0 6 1 * *", QuarterCron: "0 5 1 1,4,7,10 *"})
	s := NewScheduler(jobs, &fakeRunner{}, nil, "", nil)

	require.NoError(t, s.Start())
	defer s.Stop()

	entries := s.cron.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, kst.Location, entries[0].Next.Location())
}
