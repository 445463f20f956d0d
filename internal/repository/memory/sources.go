package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

// EventStore serves recorded task events.
type EventStore struct {
	mu     sync.RWMutex
	events map[int64][]models.BaseEvent
}

// NewEventStore returns an empty store.
func NewEventStore() *EventStore {
	return &EventStore{events: make(map[int64][]models.BaseEvent)}
}

// Add records events under their farm.
func (s *EventStore) Add(events ...models.BaseEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.events[e.FarmID] = append(s.events[e.FarmID], e)
	}
}

func (s *EventStore) Events(_ context.Context, farmID int64, from, to time.Time) ([]models.BaseEvent, error) {
	start, end := kst.StartOfDay(from), kst.EndOfDay(to)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.BaseEvent
	for _, e := range s.events[farmID] {
		if e.Date.Before(start) || e.Date.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ConfigStore serves farm forecast configurations.
type ConfigStore struct {
	mu      sync.RWMutex
	configs map[int64]models.FarmConfig
}

// NewConfigStore returns an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{configs: make(map[int64]models.FarmConfig)}
}

// Put stores cfg for its farm.
func (s *ConfigStore) Put(cfg models.FarmConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.FarmID] = cfg
}

func (s *ConfigStore) FarmConfig(_ context.Context, farmID int64) (models.FarmConfig, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[farmID]
	return cfg, ok, nil
}

func (s *ConfigStore) SaveFarmConfig(_ context.Context, cfg models.FarmConfig) error {
	s.Put(cfg)
	return nil
}

func (s *EventStore) RecordEvent(_ context.Context, e models.BaseEvent) error {
	s.Add(e)
	return nil
}
