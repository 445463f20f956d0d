// Package cache holds Redis-backed lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mamadbah2/farmreport/internal/domain/models"
	"github.com/mamadbah2/farmreport/pkg/kst"
)

const shareKeyPrefix = "farmreport:share:"

// Connect initializes a Redis client from URL or host:port input.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type shareEntry struct {
	BatchID   string `json:"batch_id"`
	FarmID    int64  `json:"farm_id"`
	ExpiresOn string `json:"expires_on"`
}

// ShareCache maps share tokens to snapshot keys until the token expires.
type ShareCache struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewShareCache creates the share token cache adapter.
func NewShareCache(client redis.Cmdable) *ShareCache {
	return &ShareCache{client: client, now: time.Now}
}

func (c *ShareCache) Get(ctx context.Context, token string) (models.SnapshotKey, time.Time, bool, error) {
	raw, err := c.client.Get(ctx, shareKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.SnapshotKey{}, time.Time{}, false, nil
		}
		return models.SnapshotKey{}, time.Time{}, false, err
	}

	var entry shareEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return models.SnapshotKey{}, time.Time{}, false, fmt.Errorf("decode share entry: %w", err)
	}
	expiresOn, err := kst.ParseDate(entry.ExpiresOn)
	if err != nil {
		return models.SnapshotKey{}, time.Time{}, false, fmt.Errorf("decode share expiry: %w", err)
	}
	return models.SnapshotKey{BatchID: entry.BatchID, FarmID: entry.FarmID}, expiresOn, true, nil
}

// Set stores the entry with a TTL ending at 23:59:59 KST of the expiry day.
// Tokens already past expiry are not cached.
func (c *ShareCache) Set(ctx context.Context, token string, key models.SnapshotKey, expiresOn time.Time) error {
	ttl := kst.EndOfDay(expiresOn).Sub(c.now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(shareEntry{BatchID: key.BatchID, FarmID: key.FarmID, ExpiresOn: kst.Compact(expiresOn)})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, shareKeyPrefix+token, raw, ttl).Err()
}
