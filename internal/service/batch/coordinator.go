// Package batch runs report generation for every entitled farm of a period
// and tracks the run as a ReportBatch.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/events"
	"github.com/mamadbah2/farmreport/internal/service/entitlement"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

const defaultWorkers = 4

var (
	// ErrBatchNotFound is returned by stores for an unknown batch id.
	ErrBatchNotFound = errors.New("report batch not found")
	// ErrInvalidPeriod is returned for a request without a known period type.
	ErrInvalidPeriod = errors.New("invalid period type")
)

// Store persists batches. SaveBatch replaces the stored state.
type Store interface {
	SaveBatch(ctx context.Context, batch models.ReportBatch) error
	Batch(ctx context.Context, id string) (models.ReportBatch, error)
}

// Scoper lists the farms entitled at an instant.
type Scoper interface {
	ActiveFarms(ctx context.Context, asOf time.Time, scope entitlement.Scope) ([]models.EntitlementRecord, error)
}

// Producer generates one farm's report rows for a batch.
type Producer interface {
	Produce(ctx context.Context, batch models.ReportBatch, farmID int64) error
}

// Request describes one batch run.
type Request struct {
	PeriodType    models.PeriodType
	GeneratedOn   time.Time // zero means now
	ScheduleGroup string
	Trigger       models.Trigger

	// FarmIDs restricts a manual run to these farms. They still have to be
	// entitled at generation time.
	FarmIDs []int64
}

// Result is the final state of a run plus the per-farm failures.
type Result struct {
	Batch    models.ReportBatch
	Failures []*GenerationFailure
}

// Coordinator drives batches from READY to DONE or ERROR.
type Coordinator struct {
	store     Store
	scoper    Scoper
	producer  Producer
	publisher events.Publisher
	workers   int
	logger    *zap.Logger
	now       func() time.Time
}

// NewCoordinator wires a coordinator. workers bounds how many farms are
// produced at once.
func NewCoordinator(store Store, scoper Scoper, producer Producer, publisher events.Publisher, workers int, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Coordinator{
		store:     store,
		scoper:    scoper,
		producer:  producer,
		publisher: publisher,
		workers:   workers,
		logger:    logger,
		now:       time.Now,
	}
}

// Run creates a batch for req and produces every farm in scope. Per-farm
// failures are counted and returned in the result; only batch-level
// failures produce an error, with the batch left in ERROR. When ctx ends
// before every farm is done the batch stays RUNNING and ctx's error is
// returned.
func (c *Coordinator) Run(ctx context.Context, req Request) (Result, error) {
	if !req.PeriodType.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, req.PeriodType)
	}
	if req.Trigger == "" {
		req.Trigger = models.TriggerManual
	}
	asOf := req.GeneratedOn
	if asOf.IsZero() {
		asOf = c.now()
	}
	generatedOn := kst.Today(asOf)
	from, to := req.PeriodType.Range(generatedOn)

	tr := newTracker(models.ReportBatch{
		ID:            uuid.NewString(),
		PeriodType:    req.PeriodType,
		GeneratedOn:   generatedOn,
		PeriodFrom:    from,
		PeriodTo:      to,
		Trigger:       req.Trigger,
		ScheduleGroup: req.ScheduleGroup,
	}, c.now)

	var saveMu sync.Mutex
	persist := func(snap models.ReportBatch) error {
		saveMu.Lock()
		defer saveMu.Unlock()
		if !tr.fresh(snap) {
			return nil
		}
		if err := c.store.SaveBatch(ctx, snap); err != nil {
			c.logger.Warn("failed to persist batch", zap.String("batch_id", snap.ID), zap.String("status", string(snap.Status)), zap.Error(err))
			return err
		}
		return nil
	}

	batch := tr.snapshot()
	logger := c.logger.With(zap.String("batch_id", batch.ID), zap.String("period", string(batch.PeriodType)))
	if err := persist(batch); err != nil {
		return Result{Batch: batch}, fmt.Errorf("create batch: %w", err)
	}

	farms, err := c.scope(ctx, req, asOf)
	if err != nil {
		batch = tr.fail(err.Error())
		_ = persist(batch)
		c.publish(ctx, batch)
		logger.Error("batch scope resolution failed", zap.Error(err))
		return Result{Batch: batch}, fmt.Errorf("resolve batch scope: %w", err)
	}

	batch = tr.start(len(farms))
	if err := persist(batch); err != nil && batch.Status.IsTerminal() {
		return Result{Batch: batch}, fmt.Errorf("save finished batch: %w", err)
	}
	logger.Info("batch started",
		zap.Int("target", batch.TargetCount),
		zap.String("from", kst.Format(from)),
		zap.String("to", kst.Format(to)),
	)

	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, farmID := range farms {
		g.Go(func() error {
			// an abandoned batch records no more outcomes and stays RUNNING
			if ctx.Err() != nil {
				return nil
			}
			var failure *GenerationFailure
			if err := c.produce(ctx, batch, farmID); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				failure = &GenerationFailure{BatchID: batch.ID, FarmID: farmID, Err: err}
				logger.Warn("farm report failed", zap.Int64("farm_id", farmID), zap.Error(err))
			}
			snap, done := tr.record(failure)
			if err := persist(snap); err != nil && done {
				return fmt.Errorf("save finished batch: %w", err)
			}
			return nil
		})
	}
	saveErr := g.Wait()

	batch = tr.snapshot()
	if saveErr != nil {
		return Result{Batch: batch, Failures: tr.failureList()}, saveErr
	}
	if err := ctx.Err(); err != nil && !batch.Status.IsTerminal() {
		logger.Warn("batch abandoned",
			zap.Int("complete", batch.CompleteCount),
			zap.Int("errors", batch.ErrorCount),
			zap.Error(err),
		)
		return Result{Batch: batch, Failures: tr.failureList()}, fmt.Errorf("batch abandoned: %w", err)
	}
	if batch.Status.IsTerminal() {
		c.publish(ctx, batch)
	}
	logger.Info("batch finished",
		zap.String("status", string(batch.Status)),
		zap.Int("complete", batch.CompleteCount),
		zap.Int("errors", batch.ErrorCount),
		zap.Duration("elapsed", batch.Elapsed),
	)
	return Result{Batch: batch, Failures: tr.failureList()}, nil
}

// Batch returns a stored batch.
func (c *Coordinator) Batch(ctx context.Context, id string) (models.ReportBatch, error) {
	return c.store.Batch(ctx, id)
}

func (c *Coordinator) scope(ctx context.Context, req Request, asOf time.Time) ([]int64, error) {
	scope := entitlement.Scope{Group: req.ScheduleGroup}
	if req.Trigger == models.TriggerScheduled {
		scope.Origin = models.OriginScheduled
	}
	active, err := c.scoper.ActiveFarms(ctx, asOf, scope)
	if err != nil {
		return nil, err
	}

	var wanted map[int64]bool
	if len(req.FarmIDs) > 0 {
		wanted = make(map[int64]bool, len(req.FarmIDs))
		for _, id := range req.FarmIDs {
			wanted[id] = true
		}
	}

	farms := make([]int64, 0, len(active))
	for _, rec := range active {
		if wanted != nil && !wanted[rec.FarmID] {
			continue
		}
		farms = append(farms, rec.FarmID)
	}
	return farms, nil
}

// produce runs one farm and turns a panic into an error so it stays a
// per-farm failure.
func (c *Coordinator) produce(ctx context.Context, batch models.ReportBatch, farmID int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.producer.Produce(ctx, batch, farmID)
}

func (c *Coordinator) publish(ctx context.Context, batch models.ReportBatch) {
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Warn("failed to publish batch event", zap.String("batch_id", batch.ID), zap.Error(err))
	}
}
