package entitlement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

// ScheduleGroups are the run slots a farm can be assigned to.
var ScheduleGroups = []string{"AM7", "PM2"}

var (
	// ErrNoActiveEntitlement is returned when a mutation needs an active
	// record and the farm has none.
	ErrNoActiveEntitlement = errors.New("farm has no active entitlement")
	// ErrInvalidScheduleGroup is returned for a group outside ScheduleGroups.
	ErrInvalidScheduleGroup = errors.New("invalid schedule group")
	// ErrRecordNotFound is returned by stores when a keyed record is missing.
	ErrRecordNotFound = errors.New("entitlement record not found")
)

// HistoryStore persists entitlement history. Records are returned in
// insertion order.
type HistoryStore interface {
	History(ctx context.Context, farmID int64) ([]models.EntitlementRecord, error)
	Histories(ctx context.Context) (map[int64][]models.EntitlementRecord, error)
	// UpsertManual inserts rec unless a record with the same farm and
	// registration date exists, in which case that record is activated,
	// enabled and marked MANUAL in place.
	UpsertManual(ctx context.Context, rec models.EntitlementRecord) error
	SetScheduleGroup(ctx context.Context, farmID int64, registeredOn time.Time, group string) error
}

// Scope narrows ActiveFarms. Zero values match everything.
type Scope struct {
	Origin models.RegistrationOrigin
	Group  string
}

func (s Scope) matches(rec models.EntitlementRecord) bool {
	if s.Origin != "" && rec.Origin != s.Origin {
		return false
	}
	if s.Group != "" && rec.Group() != s.Group {
		return false
	}
	return true
}

// Service resolves and maintains farm entitlements on top of a HistoryStore.
type Service struct {
	store  HistoryStore
	logger *zap.Logger
}

// NewService wires an entitlement service.
func NewService(store HistoryStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// ResolveActive returns the record governing asOf for one farm.
func (s *Service) ResolveActive(ctx context.Context, farmID int64, asOf time.Time) (models.EntitlementRecord, bool, error) {
	history, err := s.store.History(ctx, farmID)
	if err != nil {
		return models.EntitlementRecord{}, false, fmt.Errorf("load entitlement history: %w", err)
	}
	rec, ok := Resolve(history, asOf)
	return rec, ok, nil
}

// ActiveFarms resolves every known farm at asOf and returns the governing
// records that fall inside scope, ordered by farm id.
func (s *Service) ActiveFarms(ctx context.Context, asOf time.Time, scope Scope) ([]models.EntitlementRecord, error) {
	histories, err := s.store.Histories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load entitlement histories: %w", err)
	}

	active := make([]models.EntitlementRecord, 0, len(histories))
	for _, history := range histories {
		rec, ok := Resolve(history, asOf)
		if !ok || !scope.matches(rec) {
			continue
		}
		active = append(active, rec)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].FarmID < active[j].FarmID })

	s.logger.Debug("resolved active farms",
		zap.Time("as_of", asOf),
		zap.String("origin", string(scope.Origin)),
		zap.String("group", scope.Group),
		zap.Int("count", len(active)),
	)
	return active, nil
}

// RegisterManual activates a farm for twelve months from today (KST). Calling
// it again on the same day updates the same record instead of adding one.
func (s *Service) RegisterManual(ctx context.Context, farmID int64, now time.Time) (models.EntitlementRecord, error) {
	today := kst.Today(now)
	// coverage is [today, today+12 months); stored dates are inclusive.
	rec := models.EntitlementRecord{
		FarmID:        farmID,
		RegisteredOn:  today,
		Active:        true,
		CoverageStart: today,
		CoverageEnd:   kst.AddDays(today.AddDate(0, 12, 0), -1),
		StopOn:        models.NeverStop,
		Origin:        models.OriginManual,
		Enabled:       true,
		ScheduleGroup: models.DefaultScheduleGroup,
	}
	if err := s.store.UpsertManual(ctx, rec); err != nil {
		return models.EntitlementRecord{}, fmt.Errorf("upsert manual entitlement: %w", err)
	}

	s.logger.Info("manual entitlement registered", zap.Int64("farm_id", farmID), zap.String("registered_on", kst.Format(today)))

	history, err := s.store.History(ctx, farmID)
	if err != nil {
		return models.EntitlementRecord{}, fmt.Errorf("load entitlement history: %w", err)
	}
	for _, stored := range history {
		if stored.RegisteredOn.Equal(today) {
			return stored, nil
		}
	}
	return rec, nil
}

// UpdateScheduleGroup moves the farm's active record to another run slot.
// The record keeps its registration date.
func (s *Service) UpdateScheduleGroup(ctx context.Context, farmID int64, group string, now time.Time) error {
	if !validGroup(group) {
		return fmt.Errorf("%w: %q", ErrInvalidScheduleGroup, group)
	}
	rec, ok, err := s.ResolveActive(ctx, farmID, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoActiveEntitlement
	}
	if err := s.store.SetScheduleGroup(ctx, farmID, rec.RegisteredOn, group); err != nil {
		return fmt.Errorf("set schedule group: %w", err)
	}
	s.logger.Info("schedule group updated", zap.Int64("farm_id", farmID), zap.String("group", group))
	return nil
}

func validGroup(group string) bool {
	for _, g := range ScheduleGroups {
		if g == group {
			return true
		}
	}
	return false
}
