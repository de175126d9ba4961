package signing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/signbroker/internal/domain"
)

// Limits holds the per-user throttles. A value of 0 disables the check.
type Limits struct {
	MaxSignaturesPerMinute int
	MaxDailyVolumeUSDC     float64
}

// SecurityManager enforces per-user rate and daily volume limits on top of
// the shared cache. Limit state lives in Redis, so the limits hold across
// broker processes. Infrastructure failures in the cache fail open: a broken
// limiter must not take signing down with it.
type SecurityManager struct {
	limiter RateLimiter
	volumes VolumeTracker
	limits  Limits
	logger  *slog.Logger
}

// RateLimiter is the slice of the cache the SecurityManager needs for
// request throttling.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// VolumeTracker accumulates per-user daily signing volume.
type VolumeTracker interface {
	Add(ctx context.Context, userID int64, amountUSDC float64) (float64, error)
	Total(ctx context.Context, userID int64) (float64, error)
}

// NewSecurityManager creates a SecurityManager. Either dependency may be nil
// when the corresponding limit is disabled.
func NewSecurityManager(limiter RateLimiter, volumes VolumeTracker, limits Limits, logger *slog.Logger) *SecurityManager {
	return &SecurityManager{
		limiter: limiter,
		volumes: volumes,
		limits:  limits,
		logger:  logger.With(slog.String("component", "security")),
	}
}

// CheckRateLimit returns domain.ErrRateLimited when the user has exhausted
// the per-minute signature budget.
func (m *SecurityManager) CheckRateLimit(ctx context.Context, userID int64) error {
	if m.limits.MaxSignaturesPerMinute <= 0 || m.limiter == nil {
		return nil
	}

	key := fmt.Sprintf("sign:%d", userID)
	allowed, err := m.limiter.Allow(ctx, key, m.limits.MaxSignaturesPerMinute, time.Minute)
	if err != nil {
		m.logger.WarnContext(ctx, "rate limiter unavailable, admitting request",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !allowed {
		return errRateLimited(userID)
	}
	return nil
}

// CheckVolume returns domain.ErrVolumeLimited when adding amountUSDC would
// push the user past the daily volume cap.
func (m *SecurityManager) CheckVolume(ctx context.Context, userID int64, amountUSDC float64) error {
	if m.limits.MaxDailyVolumeUSDC <= 0 || m.volumes == nil {
		return nil
	}

	total, err := m.volumes.Total(ctx, userID)
	if err != nil {
		m.logger.WarnContext(ctx, "volume tracker unavailable, admitting request",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if total+amountUSDC > m.limits.MaxDailyVolumeUSDC {
		return errVolumeLimited(userID, total, m.limits.MaxDailyVolumeUSDC)
	}
	return nil
}

// RecordVolume counts a successful signing toward the user's daily volume.
// Failures are logged and swallowed; the signature is already produced.
func (m *SecurityManager) RecordVolume(ctx context.Context, userID int64, amountUSDC float64) {
	if m.limits.MaxDailyVolumeUSDC <= 0 || m.volumes == nil || amountUSDC <= 0 {
		return
	}

	if _, err := m.volumes.Add(ctx, userID, amountUSDC); err != nil {
		m.logger.WarnContext(ctx, "failed to record signing volume",
			slog.Int64("user_id", userID),
			slog.Float64("amount_usdc", amountUSDC),
			slog.String("error", err.Error()),
		)
	}
}

func errRateLimited(userID int64) error {
	return fmt.Errorf("%w: user %d", domain.ErrRateLimited, userID)
}

func errVolumeLimited(userID int64, total, limit float64) error {
	return fmt.Errorf("%w: user %d at %.2f of %.2f USDC", domain.ErrVolumeLimited, userID, total, limit)
}
