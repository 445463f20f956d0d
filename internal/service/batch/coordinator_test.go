package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/entitlement"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

type fakeStore struct {
	mu     sync.Mutex
	saves  []models.ReportBatch
	err    error
	failOn models.BatchStatus
}

func (s *fakeStore) SaveBatch(_ context.Context, batch models.ReportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.failOn != "" && batch.Status == s.failOn {
		return fmt.Errorf("save %s: write conflict", batch.Status)
	}
	s.saves = append(s.saves, batch)
	return nil
}

func (s *fakeStore) Batch(_ context.Context, id string) (models.ReportBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.saves) - 1; i >= 0; i-- {
		if s.saves[i].ID == id {
			return s.saves[i], nil
		}
	}
	return models.ReportBatch{}, ErrBatchNotFound
}

func (s *fakeStore) last() models.ReportBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[len(s.saves)-1]
}

type fakeScoper struct {
	farms []int64
	err   error
	got   entitlement.Scope
}

func (f *fakeScoper) ActiveFarms(_ context.Context, _ time.Time, scope entitlement.Scope) ([]models.EntitlementRecord, error) {
	f.got = scope
	if f.err != nil {
		return nil, f.err
	}
	recs := make([]models.EntitlementRecord, 0, len(f.farms))
	for _, id := range f.farms {
		recs = append(recs, models.EntitlementRecord{FarmID: id})
	}
	return recs, nil
}

type producerFunc func(ctx context.Context, batch models.ReportBatch, farmID int64) error

func (f producerFunc) Produce(ctx context.Context, batch models.ReportBatch, farmID int64) error {
	return f(ctx, batch, farmID)
}

type fakePublisher struct {
	mu      sync.Mutex
	batches []models.ReportBatch
}

func (p *fakePublisher) PublishBatch(_ context.Context, batch models.ReportBatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, batch)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func okProducer() producerFunc {
	return func(context.Context, models.ReportBatch, int64) error { return nil }
}

func newTestCoordinator(store *fakeStore, scoper *fakeScoper, producer Producer, pub *fakePublisher) *Coordinator {
	c := NewCoordinator(store, scoper, producer, pub, 2, nil)
	c.now = func() time.Time { return time.Date(2025, time.July, 14, 1, 0, 0, 0, time.UTC) }
	return c
}

func TestRunCountsFailuresWithoutAborting(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	boom := errors.New("events unavailable")
	producer := producerFunc(func(_ context.Context, _ models.ReportBatch, farmID int64) error {
		if farmID == 2 {
			return boom
		}
		return nil
	})
	c := newTestCoordinator(store, &fakeScoper{farms: []int64{1, 2, 3}}, producer, pub)

	res, err := c.Run(context.Background(), Request{PeriodType: models.PeriodWeek})
	require.NoError(t, err)

	assert.Equal(t, models.BatchDone, res.Batch.Status)
	assert.Equal(t, 3, res.Batch.TargetCount)
	assert.Equal(t, 2, res.Batch.CompleteCount)
	assert.Equal(t, 1, res.Batch.ErrorCount)
	require.Len(t, res.Failures, 1)

	var failure *GenerationFailure
	require.ErrorAs(t, res.Failures[0], &failure)
	assert.Equal(t, int64(2), failure.FarmID)
	assert.Equal(t, res.Batch.ID, failure.BatchID)
	assert.ErrorIs(t, failure, boom)

	assert.Equal(t, res.Batch, store.last())
	require.Len(t, pub.batches, 1)
	assert.Equal(t, models.BatchDone, pub.batches[0].Status)
}

func TestRunSetsPeriodFromGenerationDay(t *testing.T) {
	store := &fakeStore{}
	c := newTestCoordinator(store, &fakeScoper{}, okProducer(), &fakePublisher{})

	res, err := c.Run(context.Background(), Request{PeriodType: models.PeriodWeek})
	require.NoError(t, err)

	// 2025-07-14 10:00 KST is a Monday.
	assert.Equal(t, kst.Date(2025, time.July, 14), res.Batch.GeneratedOn)
	assert.Equal(t, kst.Date(2025, time.July, 7), res.Batch.PeriodFrom)
	assert.Equal(t, kst.Date(2025, time.July, 13), res.Batch.PeriodTo)
	assert.Equal(t, models.TriggerManual, res.Batch.Trigger)
}

func TestRunScopeFailureEndsInError(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	called := false
	producer := producerFunc(func(context.Context, models.ReportBatch, int64) error {
		called = true
		return nil
	})
	c := newTestCoordinator(store, &fakeScoper{err: errors.New("history store down")}, producer, pub)

	res, err := c.Run(context.Background(), Request{PeriodType: models.PeriodMonth})
	require.Error(t, err)

	assert.False(t, called)
	assert.Equal(t, models.BatchError, res.Batch.Status)
	assert.Contains(t, res.Batch.FailureReason, "history store down")
	assert.Equal(t, models.BatchError, store.last().Status)
	require.Len(t, pub.batches, 1)
}

func TestRunEmptyScopeIsDone(t *testing.T) {
	store := &fakeStore{}
	c := newTestCoordinator(store, &fakeScoper{}, okProducer(), &fakePublisher{})

	res, err := c.Run(context.Background(), Request{PeriodType: models.PeriodQuarter})
	require.NoError(t, err)

	assert.Equal(t, models.BatchDone, res.Batch.Status)
	assert.Zero(t, res.Batch.TargetCount)
	require.NotNil(t, res.Batch.FinishedAt)
}

func TestRunRecoversProducerPanic(t *testing.T) {
	producer := producerFunc(func(_ context.Context, _ models.ReportBatch, farmID int64) error {
		if farmID == 1 {
			panic("nil config")
		}
		return nil
	})
	c := newTestCoordinator(&fakeStore{}, &fakeScoper{farms: []int64{1, 2}}, producer, &fakePublisher{})

	res, err := c.Run(context.Background(), Request{PeriodType: models.PeriodWeek})
	require.NoError(t, err)

	assert.Equal(t, models.BatchDone, res.Batch.Status)
	assert.Equal(t, 1, res.Batch.CompleteCount)
	assert.Equal(t, 1, res.Batch.ErrorCount)
}

func TestRunConcurrentFarmsReachDoneOnce(t *testing.T) {
	farms := make([]int64, 60)
	for i := range farms {
		farms[i] = int64(i + 1)
	}
	producer := producerFunc(func(_ context.Context, _ models.ReportBatch, farmID int64) error {
		if farmID%7 == 0 {
			return fmt.Errorf("farm %d has no events", farmID)
		}
		return nil
	})
	store := &fakeStore{}
	pub := &fakePublisher{}
	c := newTestCoordinator(store, &fakeScoper{farms: farms}, producer, pub)
	c.workers = 8

	res, err := c.Run(context.Background(), Request{PeriodType: models.PeriodWeek})
	require.NoError(t, err)

	assert.Equal(t, models.BatchDone, res.Batch.Status)
	assert.Equal(t, 52, res.Batch.CompleteCount)
	assert.Equal(t, 8, res.Batch.ErrorCount)
	assert.Len(t, pub.batches, 1)

	var done int
	progress := -1
	for _, saved := range store.saves {
		if saved.Status == models.BatchDone {
			done++
		}
		if saved.Status == models.BatchRunning {
			n := saved.CompleteCount + saved.ErrorCount
			assert.Greater(t, n, progress)
			progress = n
		}
	}
	assert.Equal(t, 1, done)
	assert.Equal(t, models.BatchDone, store.last().Status)
}

func TestRunScheduledScope(t *testing.T) {
	scoper := &fakeScoper{farms: []int64{10, 11, 12}}
	var mu sync.Mutex
	var produced []int64
	producer := producerFunc(func(_ context.Context, _ models.ReportBatch, farmID int64) error {
		mu.Lock()
		defer mu.Unlock()
		produced = append(produced, farmID)
		return nil
	})
	c := newTestCoordinator(&fakeStore{}, scoper, producer, &fakePublisher{})

	res, err := c.Run(context.Background(), Request{
		PeriodType:    models.PeriodWeek,
		Trigger:       models.TriggerScheduled,
		ScheduleGroup: "PM2",
		FarmIDs:       []int64{11, 99},
	})
	require.NoError(t, err)

	assert.Equal(t, entitlement.Scope{Origin: models.OriginScheduled, Group: "PM2"}, scoper.got)
	assert.Equal(t, 1, res.Batch.TargetCount)
	assert.Equal(t, []int64{11}, produced)
	assert.Equal(t, "PM2", res.Batch.ScheduleGroup)
}

func TestRunRejectsUnknownPeriod(t *testing.T) {
	c := newTestCoordinator(&fakeStore{}, &fakeScoper{}, okProducer(), &fakePublisher{})

	_, err := c.Run(context.Background(), Request{PeriodType: "DAY"})
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestTrackerIgnoresOutcomesAfterTerminal(t *testing.T) {
	tr := newTracker(models.ReportBatch{ID: "b"}, time.Now)
	tr.start(1)

	batch, done := tr.record(nil)
	require.True(t, done)
	assert.Equal(t, models.BatchDone, batch.Status)

	batch, done = tr.record(&GenerationFailure{BatchID: "b", FarmID: 1, Err: errors.New("late")})
	assert.False(t, done)
	assert.Equal(t, 0, batch.ErrorCount)
	assert.Equal(t, models.BatchDone, tr.fail("late failure").Status)
}

func TestRunCancelledBatchStaysRunning(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var produced []int64
	producer := producerFunc(func(_ context.Context, _ models.ReportBatch, farmID int64) error {
		mu.Lock()
		defer mu.Unlock()
		produced = append(produced, farmID)
		if farmID == 1 {
			cancel()
		}
		return nil
	})
	c := NewCoordinator(store, &fakeScoper{farms: []int64{1, 2, 3, 4}}, producer, pub, 1, nil)

	res, err := c.Run(ctx, Request{PeriodType: models.PeriodWeek})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, models.BatchRunning, res.Batch.Status)
	assert.Equal(t, 4, res.Batch.TargetCount)
	assert.Equal(t, 1, res.Batch.CompleteCount)
	assert.Zero(t, res.Batch.ErrorCount)
	assert.Empty(t, res.Failures)
	assert.Equal(t, []int64{1}, produced)
	assert.Nil(t, res.Batch.FinishedAt)
	assert.Empty(t, pub.batches)
}

func TestRunCancelledFarmIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	producer := producerFunc(func(ctx context.Context, _ models.ReportBatch, _ int64) error {
		cancel()
		return ctx.Err()
	})
	c := newTestCoordinator(&fakeStore{}, &fakeScoper{farms: []int64{1}}, producer, &fakePublisher{})

	res, err := c.Run(ctx, Request{PeriodType: models.PeriodWeek})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.BatchRunning, res.Batch.Status)
	assert.Zero(t, res.Batch.ErrorCount)
}

func TestRunReportsFailedFinalSave(t *testing.T) {
	store := &fakeStore{failOn: models.BatchDone}
	pub := &fakePublisher{}
	c := newTestCoordinator(store, &fakeScoper{farms: []int64{1, 2}}, okProducer(), pub)

	res, err := c.Run(context.Background(), Request{PeriodType: models.PeriodWeek})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save finished batch")

	assert.Equal(t, models.BatchDone, res.Batch.Status)
	assert.Equal(t, models.BatchRunning, store.last().Status)
	assert.Empty(t, pub.batches)
}

func TestRunReportsFailedSaveOfEmptyBatch(t *testing.T) {
	store := &fakeStore{failOn: models.BatchDone}
	c := newTestCoordinator(store, &fakeScoper{}, okProducer(), &fakePublisher{})

	_, err := c.Run(context.Background(), Request{PeriodType: models.PeriodWeek})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save finished batch")
}
