package memory

import (
	"context"
	"sync"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/batch"
)

// BatchStore keeps the latest state of every batch.
type BatchStore struct {
	mu      sync.RWMutex
	batches map[string]models.ReportBatch
}

// NewBatchStore returns an empty store.
func NewBatchStore() *BatchStore {
	return &BatchStore{batches: make(map[string]models.ReportBatch)}
}

func (s *BatchStore) SaveBatch(_ context.Context, b models.ReportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = b
	return nil
}

func (s *BatchStore) Batch(_ context.Context, id string) (models.ReportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return models.ReportBatch{}, batch.ErrBatchNotFound
	}
	return b, nil
}
