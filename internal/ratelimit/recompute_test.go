package ratelimit

import (
	"context"
	"testing"

	"github.com/skolarhq/skolar/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecomputeLimiterDisabled(t *testing.T) {
	limiter, err := NewRecomputeLimiter(config.Config{})
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())
}

func TestNewRecomputeLimiterValidation(t *testing.T) {
	_, err := NewRecomputeLimiter(config.Config{
		RateLimit: config.RateLimitConfig{Enabled: true},
	})
	assert.Error(t, err)

	_, err = NewRecomputeLimiter(config.Config{
		RateLimit: config.RateLimitConfig{
			Enabled:   true,
			RedisAddr: "localhost:6379",
		},
	})
	assert.Error(t, err)
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var limiter *RecomputeLimiter
	ctx := context.Background()

	allowed, err := limiter.AllowTeacher(ctx, "1")
	require.NoError(t, err)
	assert.True(t, allowed)

	token, allowed, err := limiter.TryLockPayout(ctx, "1", "2024-03")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, token)

	assert.NoError(t, limiter.ReleasePayout(ctx, "1", "2024-03", token))
}
