// Package sharing issues and checks the tokens that give unauthenticated
// readers access to one farm's report.
package sharing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/internal/service/reporting"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

// DefaultExpireDays is how many calendar days a new token stays valid.
const DefaultExpireDays = 7

var (
	// ErrShareNotFound is returned for a token no snapshot carries.
	ErrShareNotFound = errors.New("share token not found")
	// ErrShareExpired is returned once the token's last day has ended in KST.
	ErrShareExpired = errors.New("share token expired")
)

// SnapshotStore is the part of the report store sharing needs.
type SnapshotStore interface {
	Snapshot(ctx context.Context, key models.SnapshotKey) (models.ReportSnapshot, error)
	SetShareToken(ctx context.Context, key models.SnapshotKey, token string, expiresOn time.Time) error
	SnapshotByToken(ctx context.Context, token string) (models.ReportSnapshot, error)
}

// TokenCache remembers which snapshot a token points to. ok is false on a miss.
type TokenCache interface {
	Get(ctx context.Context, token string) (key models.SnapshotKey, expiresOn time.Time, ok bool, err error)
	Set(ctx context.Context, token string, key models.SnapshotKey, expiresOn time.Time) error
}

// Share is an issued token.
type Share struct {
	Token     string    `json:"token"`
	ExpiresOn time.Time `json:"expires_on"`
}

// Service issues and resolves share tokens.
type Service struct {
	store      SnapshotStore
	cache      TokenCache
	expireDays int
	logger     *zap.Logger
}

// NewService wires a sharing service. cache may be nil.
func NewService(store SnapshotStore, cache TokenCache, expireDays int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if expireDays <= 0 {
		expireDays = DefaultExpireDays
	}
	return &Service{store: store, cache: cache, expireDays: expireDays, logger: logger}
}

// Issue returns the snapshot's token while it is still valid, otherwise it
// mints a new one expiring expireDays after today (KST).
func (s *Service) Issue(ctx context.Context, batchID string, farmID int64, now time.Time) (Share, error) {
	key := models.SnapshotKey{BatchID: batchID, FarmID: farmID}
	snapshot, err := s.store.Snapshot(ctx, key)
	if err != nil {
		return Share{}, fmt.Errorf("load report snapshot: %w", err)
	}
	if snapshot.ShareToken != "" && snapshot.TokenExpiresOn != nil && valid(*snapshot.TokenExpiresOn, now) {
		return Share{Token: snapshot.ShareToken, ExpiresOn: *snapshot.TokenExpiresOn}, nil
	}

	share := Share{
		Token:     newToken(key, now),
		ExpiresOn: kst.AddDays(kst.Today(now), s.expireDays),
	}
	if err := s.store.SetShareToken(ctx, key, share.Token, share.ExpiresOn); err != nil {
		return Share{}, fmt.Errorf("store share token: %w", err)
	}
	s.remember(ctx, share.Token, key, share.ExpiresOn)

	s.logger.Info("share token issued",
		zap.String("batch_id", batchID),
		zap.Int64("farm_id", farmID),
		zap.String("expires_on", kst.Format(share.ExpiresOn)),
	)
	return share, nil
}

// Resolve returns the snapshot a valid token grants access to.
func (s *Service) Resolve(ctx context.Context, token string, now time.Time) (models.ReportSnapshot, error) {
	if token == "" {
		return models.ReportSnapshot{}, ErrShareNotFound
	}

	if s.cache != nil {
		key, expiresOn, ok, err := s.cache.Get(ctx, token)
		if err != nil {
			s.logger.Warn("share cache lookup failed", zap.Error(err))
		}
		if ok {
			if !valid(expiresOn, now) {
				return models.ReportSnapshot{}, ErrShareExpired
			}
			snapshot, err := s.store.Snapshot(ctx, key)
			if err == nil && snapshot.ShareToken == token {
				return snapshot, nil
			}
		}
	}

	snapshot, err := s.store.SnapshotByToken(ctx, token)
	if errors.Is(err, reporting.ErrSnapshotNotFound) {
		return models.ReportSnapshot{}, ErrShareNotFound
	}
	if err != nil {
		return models.ReportSnapshot{}, fmt.Errorf("load snapshot by token: %w", err)
	}
	if snapshot.TokenExpiresOn == nil || !valid(*snapshot.TokenExpiresOn, now) {
		return models.ReportSnapshot{}, ErrShareExpired
	}
	s.remember(ctx, token, snapshot.SnapshotKey, *snapshot.TokenExpiresOn)
	return snapshot, nil
}

func (s *Service) remember(ctx context.Context, token string, key models.SnapshotKey, expiresOn time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, token, key, expiresOn); err != nil {
		s.logger.Warn("share cache store failed", zap.Error(err))
	}
}

// valid reports whether a token expiring on the given day is usable at now.
// The expiry day is usable until 23:59:59 KST.
func valid(expiresOn, now time.Time) bool {
	return !now.After(kst.EndOfDay(expiresOn))
}

func newToken(key models.SnapshotKey, now time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d-%s-%d", key.FarmID, key.BatchID, now.UnixNano())))
	return hex.EncodeToString(sum[:])
}
