package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/skolarhq/skolar/internal/config"
)

const (
	keyRecomputeTeacher = "payout:recompute:teacher:%s"
	keyRecomputeLock    = "payout:recompute:lock:%s:%s"
)

// RecomputeLimiter throttles manual payout recomputes per teacher and
// serializes concurrent recomputes of the same (teacher, period) key across
// instances. Nil when rate limiting is disabled.
type RecomputeLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewRecomputeLimiter(cfg config.Config) (*RecomputeLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.RecomputeRate <= 0 || limitCfg.RecomputeBurst <= 0 {
		return nil, errors.New("recompute rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &RecomputeLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    limitCfg.RecomputeRate,
		burst:   limitCfg.RecomputeBurst,
		lockTTL: time.Duration(limitCfg.LockTTLSeconds) * time.Second,
	}, nil
}

func (l *RecomputeLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *RecomputeLimiter) AllowTeacher(ctx context.Context, teacherID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyRecomputeTeacher, strings.TrimSpace(teacherID)), l.rate, l.burst)
}

func (l *RecomputeLimiter) TryLockPayout(ctx context.Context, teacherID, period string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	key := fmt.Sprintf(keyRecomputeLock, strings.TrimSpace(teacherID), strings.TrimSpace(period))
	return l.locker.TryLock(ctx, key, l.lockTTL)
}

func (l *RecomputeLimiter) ReleasePayout(ctx context.Context, teacherID, period, token string) error {
	if !l.Enabled() {
		return nil
	}
	key := fmt.Sprintf(keyRecomputeLock, strings.TrimSpace(teacherID), strings.TrimSpace(period))
	return l.locker.Release(ctx, key, token)
}
