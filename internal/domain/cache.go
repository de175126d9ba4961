package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// VolumeTracker accumulates per-user daily signing volume. Add returns the
// user's total for the current day including amount.
type VolumeTracker interface {
	Add(ctx context.Context, userID int64, amountUSDC float64) (float64, error)
	Total(ctx context.Context, userID int64) (float64, error)
}
