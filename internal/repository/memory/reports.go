package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/reporting"
)

// ReportStore holds panel rows and snapshots.
type ReportStore struct {
	mu        sync.RWMutex
	rows      map[models.SnapshotKey][]models.PanelRow
	snapshots map[models.SnapshotKey]models.ReportSnapshot
}

// NewReportStore returns an empty store.
func NewReportStore() *ReportStore {
	return &ReportStore{
		rows:      make(map[models.SnapshotKey][]models.PanelRow),
		snapshots: make(map[models.SnapshotKey]models.ReportSnapshot),
	}
}

func (s *ReportStore) ReplaceRows(_ context.Context, batchID string, farmID int64, rows []models.PanelRow) error {
	seen := make(map[models.PanelKey]bool, len(rows))
	for _, row := range rows {
		key := row.PanelKey
		key.BatchID, key.FarmID = batchID, farmID
		if seen[key] {
			return fmt.Errorf("duplicate panel row %s/%s sort %d", key.Panel, key.SubPanel, key.Sort)
		}
		seen[key] = true
	}

	sorted := append([]models.PanelRow(nil), rows...)
	for i := range sorted {
		sorted[i].BatchID, sorted[i].FarmID = batchID, farmID
	}
	sort.SliceStable(sorted, func(i, j int) bool { return lessKey(sorted[i].PanelKey, sorted[j].PanelKey) })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[models.SnapshotKey{BatchID: batchID, FarmID: farmID}] = sorted
	return nil
}

func (s *ReportStore) Rows(_ context.Context, batchID string, farmID int64) ([]models.PanelRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PanelRow(nil), s.rows[models.SnapshotKey{BatchID: batchID, FarmID: farmID}]...), nil
}

func (s *ReportStore) CreateSnapshot(_ context.Context, snapshot models.ReportSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[snapshot.SnapshotKey]; ok {
		return reporting.ErrSnapshotExists
	}
	s.snapshots[snapshot.SnapshotKey] = snapshot
	return nil
}

func (s *ReportStore) Snapshot(_ context.Context, key models.SnapshotKey) (models.ReportSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[key]
	if !ok {
		return models.ReportSnapshot{}, reporting.ErrSnapshotNotFound
	}
	return snapshot, nil
}

func (s *ReportStore) SetShareToken(_ context.Context, key models.SnapshotKey, token string, expiresOn time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.snapshots[key]
	if !ok {
		return reporting.ErrSnapshotNotFound
	}
	snapshot.ShareToken = token
	snapshot.TokenExpiresOn = &expiresOn
	s.snapshots[key] = snapshot
	return nil
}

func (s *ReportStore) SnapshotByToken(_ context.Context, token string) (models.ReportSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, snapshot := range s.snapshots {
		if token != "" && snapshot.ShareToken == token {
			return snapshot, nil
		}
	}
	return models.ReportSnapshot{}, reporting.ErrSnapshotNotFound
}

func lessKey(a, b models.PanelKey) bool {
	if a.Panel != b.Panel {
		return a.Panel < b.Panel
	}
	if a.SubPanel != b.SubPanel {
		return a.SubPanel < b.SubPanel
	}
	return a.Sort < b.Sort
}
