package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/mamadbah2/farmreport/internal/domain/models"
)

var (
	// ErrSnapshotNotFound is returned by snapshot stores for an unknown key or token.
	ErrSnapshotNotFound = errors.New("report snapshot not found")
	// ErrSnapshotExists is returned when a farm already has a snapshot in a batch.
	ErrSnapshotExists = errors.New("report snapshot already exists")
)

// EventSource returns a farm's recorded task events dated within [from, to].
type EventSource interface {
	Events(ctx context.Context, farmID int64, from, to time.Time) ([]models.BaseEvent, error)
}

// ConfigSource returns a farm's forecast configuration. ok is false when the
// farm has never configured one.
type ConfigSource interface {
	FarmConfig(ctx context.Context, farmID int64) (cfg models.FarmConfig, ok bool, err error)
}

// ConfigStore also saves a farm's configuration, replacing the previous one.
type ConfigStore interface {
	ConfigSource
	SaveFarmConfig(ctx context.Context, cfg models.FarmConfig) error
}

// RowStore persists panel rows. ReplaceRows swaps every row of a farm within
// a batch for the given ones; Rows returns them in key order.
type RowStore interface {
	ReplaceRows(ctx context.Context, batchID string, farmID int64, rows []models.PanelRow) error
	Rows(ctx context.Context, batchID string, farmID int64) ([]models.PanelRow, error)
}

// SnapshotStore persists report snapshots. Only the share token of a stored
// snapshot may change.
type SnapshotStore interface {
	CreateSnapshot(ctx context.Context, snapshot models.ReportSnapshot) error
	Snapshot(ctx context.Context, key models.SnapshotKey) (models.ReportSnapshot, error)
	SetShareToken(ctx context.Context, key models.SnapshotKey, token string, expiresOn time.Time) error
	SnapshotByToken(ctx context.Context, token string) (models.ReportSnapshot, error)
}
