package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skolarhq/skolar/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	rateLimitReasonTeacherRate = "teacher-rate"
	rateLimitReasonConcurrency = "payout-concurrency"
)

// RecomputeRateLimit throttles manual recomputes per teacher and holds a
// short lock on the (teacher, period) key so concurrent requests for the
// same payout line up instead of racing.
func (s *Server) RecomputeRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.recomputeLimiter == nil || !s.recomputeLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		teacherID := strings.TrimSpace(c.Param("teacher_id"))
		period := strings.TrimSpace(c.Param("period"))

		allowed, err := s.recomputeLimiter.AllowTeacher(ctx, teacherID)
		if err != nil {
			logger.FromContext(ctx).Warn("recompute rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			denyRecompute(c, teacherID, rateLimitReasonTeacherRate)
			return
		}

		lockToken, allowed, err := s.recomputeLimiter.TryLockPayout(ctx, teacherID, period)
		if err != nil {
			logger.FromContext(ctx).Warn("recompute concurrency lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			denyRecompute(c, teacherID, rateLimitReasonConcurrency)
			return
		}
		defer func() {
			if err := s.recomputeLimiter.ReleasePayout(ctx, teacherID, period, lockToken); err != nil {
				logger.FromContext(ctx).Warn("recompute concurrency unlock failed", zap.Error(err))
			}
		}()

		c.Next()
	}
}

func denyRecompute(c *gin.Context, teacherID, reason string) {
	logger.FromContext(c.Request.Context()).Warn("payout recompute rate limit exceeded",
		zap.String("teacher_id", teacherID),
		zap.String("reason", reason),
	)

	c.Header("Retry-After", "1")
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}
