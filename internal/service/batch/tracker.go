package batch

import (
	"fmt"
	"sync"
	"time"

	"github.com/mamadbah2/farmreport/internal/domain/models"
)

// GenerationFailure records one farm whose report could not be produced. It
// counts against the batch's ErrorCount and never aborts the batch.
type GenerationFailure struct {
	BatchID string
	FarmID  int64
	Err     error
}

func (f *GenerationFailure) Error() string {
	return fmt.Sprintf("generate report for farm %d in batch %s: %v", f.FarmID, f.BatchID, f.Err)
}

func (f *GenerationFailure) Unwrap() error {
	return f.Err
}

// tracker owns a batch's status and counters. Every mutation and the
// completion check run under one lock so DONE is reached exactly once.
type tracker struct {
	mu       sync.Mutex
	batch    models.ReportBatch
	failures []*GenerationFailure
	saved    int
	now      func() time.Time
}

func newTracker(batch models.ReportBatch, now func() time.Time) *tracker {
	batch.Status = models.BatchReady
	return &tracker{batch: batch, saved: -1, now: now}
}

func (t *tracker) snapshot() models.ReportBatch {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.batch
}

// start moves READY to RUNNING for target farms. An empty scope finishes the
// batch immediately.
func (t *tracker) start(target int) models.ReportBatch {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.batch.Status != models.BatchReady {
		return t.batch
	}
	started := t.now()
	t.batch.Status = models.BatchRunning
	t.batch.StartedAt = &started
	t.batch.TargetCount = target
	if target == 0 {
		t.finishLocked(models.BatchDone)
	}
	return t.batch
}

// record counts one farm outcome. It returns the updated batch and whether
// this outcome completed it.
func (t *tracker) record(failure *GenerationFailure) (models.ReportBatch, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.batch.Status != models.BatchRunning {
		return t.batch, false
	}
	if failure != nil {
		t.batch.ErrorCount++
		t.failures = append(t.failures, failure)
	} else {
		t.batch.CompleteCount++
	}
	if t.batch.CompleteCount+t.batch.ErrorCount == t.batch.TargetCount {
		t.finishLocked(models.BatchDone)
		return t.batch, true
	}
	return t.batch, false
}

// fail ends the batch in ERROR for a batch-level failure.
func (t *tracker) fail(reason string) models.ReportBatch {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.batch.Status.IsTerminal() {
		return t.batch
	}
	if t.batch.StartedAt == nil {
		started := t.now()
		t.batch.StartedAt = &started
	}
	t.batch.FailureReason = reason
	t.finishLocked(models.BatchError)
	return t.batch
}

func (t *tracker) finishLocked(status models.BatchStatus) {
	finished := t.now()
	t.batch.Status = status
	t.batch.FinishedAt = &finished
	if t.batch.StartedAt != nil {
		t.batch.Elapsed = finished.Sub(*t.batch.StartedAt)
	}
}

func (t *tracker) failureList() []*GenerationFailure {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*GenerationFailure(nil), t.failures...)
}

// fresh reports whether snap is newer than the last persisted state and marks
// it as persisted. Outcomes recorded concurrently may reach the store out of
// order; stale ones are skipped.
func (t *tracker) fresh(snap models.ReportBatch) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	var progress int
	switch {
	case snap.Status.IsTerminal():
		progress = snap.TargetCount + 2
	case snap.Status == models.BatchRunning:
		progress = 1 + snap.CompleteCount + snap.ErrorCount
	}
	if progress <= t.saved {
		return false
	}
	t.saved = progress
	return true
}
