// Package scheduler triggers the periodic report batches.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmreport/internal/config"
	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/batch"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

const jobTimeout = 30 * time.Minute

// BatchRunner runs one report batch.
type BatchRunner interface {
	Run(ctx context.Context, req batch.Request) (batch.Result, error)
}

// Notifier delivers the batch summary. It may be nil.
type Notifier interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// Job is one cron entry.
type Job struct {
	Name          string
	Spec          string
	PeriodType    models.PeriodType
	ScheduleGroup string
}

// Jobs returns the weekly runs per schedule group plus the monthly and
// quarterly runs.
func Jobs(cfg config.ReportingConfig) []Job {
	return []Job{
		{Name: "weekly-am", Spec: cfg.WeekAMCron, PeriodType: models.PeriodWeek, ScheduleGroup: "AM7"},
		{Name: "weekly-pm", Spec: cfg.WeekPMCron, PeriodType: models.PeriodWeek, ScheduleGroup: "PM2"},
		{Name: "monthly", Spec: cfg.MonthCron, PeriodType: models.PeriodMonth},
		{Name: "quarterly", Spec: cfg.QuarterCron, PeriodType: models.PeriodQuarter},
	}
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	jobs     []Job
	runner   BatchRunner
	notifier Notifier
	notifyTo string
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a new scheduler instance. Cron specs are evaluated in
// KST whatever the host timezone.
func NewScheduler(jobs []Job, runner BatchRunner, notifier Notifier, notifyTo string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(kst.Location)),
		jobs:     jobs,
		runner:   runner,
		notifier: notifier,
		notifyTo: notifyTo,
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers every job and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler")

	for _, job := range s.jobs {
		if _, err := s.cron.AddFunc(job.Spec, func() { s.runJob(job) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Spec, err)
		}
		s.logger.Info("report job scheduled", zap.String("job", job.Name), zap.String("spec", job.Spec))
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	logger := s.logger.With(zap.String("job", job.Name))
	logger.Info("running scheduled report batch")

	result, err := s.runner.Run(ctx, batch.Request{
		PeriodType:    job.PeriodType,
		GeneratedOn:   s.now(),
		ScheduleGroup: job.ScheduleGroup,
		Trigger:       models.TriggerScheduled,
	})
	if err != nil {
		logger.Error("scheduled report batch failed", zap.Error(err))
	}
	if result.Batch.ID == "" {
		return
	}

	if s.notifier == nil || s.notifyTo == "" {
		return
	}
	if _, err := s.notifier.SendText(ctx, s.notifyTo, Summary(job, result)); err != nil {
		logger.Error("failed to send batch summary", zap.Error(err))
	} else {
		logger.Info("batch summary sent", zap.String("batch_id", result.Batch.ID))
	}
}

// Summary renders the notification text for a finished batch.
func Summary(job Job, result batch.Result) string {
	b := result.Batch

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s report %s ~ %s", strings.ToLower(string(b.PeriodType)), kst.Format(b.PeriodFrom), kst.Format(b.PeriodTo))
	if job.ScheduleGroup != "" {
		fmt.Fprintf(&sb, " [%s]", job.ScheduleGroup)
	}
	fmt.Fprintf(&sb, ": %s", b.Status)

	if b.Status == models.BatchError {
		fmt.Fprintf(&sb, " (%s)", b.FailureReason)
	} else {
		fmt.Fprintf(&sb, ", %d/%d farms done", b.CompleteCount, b.TargetCount)
		if b.ErrorCount > 0 {
			fmt.Fprintf(&sb, ", %d failed", b.ErrorCount)
		}
	}
	fmt.Fprintf(&sb, ". batch %s", b.ID)
	return sb.String()
}
