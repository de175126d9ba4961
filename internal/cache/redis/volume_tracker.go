package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/signbroker/internal/domain"
)

// volumeKeyTTL keeps a day bucket around past midnight so operators can
// still inspect yesterday's totals.
const volumeKeyTTL = 48 * time.Hour

// VolumeTracker implements domain.VolumeTracker using per-day Redis
// counters. Buckets roll over at UTC midnight; INCRBYFLOAT makes the
// accumulation atomic across broker processes.
type VolumeTracker struct {
	rdb *redis.Client
}

// NewVolumeTracker creates a VolumeTracker backed by the given Client.
func NewVolumeTracker(c *Client) *VolumeTracker {
	return &VolumeTracker{rdb: c.Underlying()}
}

func volumeKey(userID int64, day time.Time) string {
	return fmt.Sprintf("volume:%d:%s", userID, day.UTC().Format("2006-01-02"))
}

// Add accumulates amountUSDC onto the user's bucket for the current UTC day
// and returns the new total.
func (vt *VolumeTracker) Add(ctx context.Context, userID int64, amountUSDC float64) (float64, error) {
	key := volumeKey(userID, time.Now())

	total, err := vt.rdb.IncrByFloat(ctx, key, amountUSDC).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: add volume for user %d: %w", userID, err)
	}

	// Best effort: the bucket self-expires even if this fails.
	_ = vt.rdb.Expire(ctx, key, volumeKeyTTL).Err()

	return total, nil
}

// Total returns the user's accumulated volume for the current UTC day. A
// missing bucket reads as zero.
func (vt *VolumeTracker) Total(ctx context.Context, userID int64) (float64, error) {
	key := volumeKey(userID, time.Now())

	total, err := vt.rdb.Get(ctx, key).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis: get volume for user %d: %w", userID, err)
	}
	return total, nil
}

// Compile-time interface check.
var _ domain.VolumeTracker = (*VolumeTracker)(nil)
