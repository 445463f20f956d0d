// Package memory provides in-process stores used for local runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/entitlement"
)

// EntitlementStore keeps entitlement history per farm in insertion order.
type EntitlementStore struct {
	mu      sync.RWMutex
	records map[int64][]models.EntitlementRecord
}

// NewEntitlementStore returns an empty store.
func NewEntitlementStore() *EntitlementStore {
	return &EntitlementStore{records: make(map[int64][]models.EntitlementRecord)}
}

// Append adds a record as is, for example a scheduled registration.
func (s *EntitlementStore) Append(rec models.EntitlementRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.FarmID] = append(s.records[rec.FarmID], rec)
}

func (s *EntitlementStore) History(_ context.Context, farmID int64) ([]models.EntitlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.EntitlementRecord(nil), s.records[farmID]...), nil
}

func (s *EntitlementStore) Histories(_ context.Context) (map[int64][]models.EntitlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64][]models.EntitlementRecord, len(s.records))
	for farmID, history := range s.records {
		out[farmID] = append([]models.EntitlementRecord(nil), history...)
	}
	return out, nil
}

func (s *EntitlementStore) UpsertManual(_ context.Context, rec models.EntitlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.records[rec.FarmID]
	for i := range history {
		if history[i].RegisteredOn.Equal(rec.RegisteredOn) {
			history[i].Active = true
			history[i].Enabled = true
			history[i].Origin = models.OriginManual
			return nil
		}
	}
	s.records[rec.FarmID] = append(history, rec)
	return nil
}

func (s *EntitlementStore) SetScheduleGroup(_ context.Context, farmID int64, registeredOn time.Time, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.records[farmID]
	for i := range history {
		if history[i].RegisteredOn.Equal(registeredOn) {
			history[i].ScheduleGroup = group
			return nil
		}
	}
	return entitlement.ErrRecordNotFound
}
