// Package scheduler sweeps payout records that fell behind their lesson
// ledger: teachers without a record for the just-closed period, and records
// whose lessons changed after the last calculation.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/skolarhq/skolar/internal/clock"
	payoutdomain "github.com/skolarhq/skolar/internal/payout/domain"
	teacherdomain "github.com/skolarhq/skolar/internal/teacher/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler requires db, logger, clock and payout service")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	TeacherSvc teacherdomain.Service
	PayoutSvc  payoutdomain.Service
	Config     Config `optional:"true"`
}

type Scheduler struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	teacherSvc teacherdomain.Service
	payoutSvc  payoutdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.TeacherSvc == nil || p.PayoutSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:         p.DB,
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		teacherSvc: p.TeacherSvc,
		payoutSvc:  p.PayoutSvc,
	}, nil
}

// RunForever sweeps on the configured interval until ctx is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("payout sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce closes out the previous billing period and refreshes stale
// current-period records. Errors on individual teachers are logged and do
// not stop the sweep.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	now := s.clock.Now()
	currentStart, _ := payoutdomain.PeriodOf(now).Range()
	previous := payoutdomain.PeriodOf(currentStart.Add(-time.Hour))

	if err := s.closeOutPeriod(ctx, previous); err != nil {
		return err
	}
	return s.refreshStale(ctx, payoutdomain.PeriodOf(now))
}

// closeOutPeriod makes sure every teacher has a record for the period, so
// month-end reporting never waits on a lazy read.
func (s *Scheduler) closeOutPeriod(ctx context.Context, period payoutdomain.Period) error {
	teacherIDs, err := s.teacherSvc.ListIDs(ctx)
	if err != nil {
		return err
	}

	start, _ := period.Range()
	swept := 0
	for _, teacherID := range teacherIDs {
		if swept >= s.cfg.BatchSize {
			break
		}
		var count int64
		err := s.db.WithContext(ctx).
			Model(&payoutdomain.PayoutRecord{}).
			Where("teacher_id = ? AND billing_period = ?", teacherID, period.String()).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		if _, err := s.payoutSvc.RecomputeForLesson(ctx, teacherID, start); err != nil {
			s.log.Warn("close-out recompute failed",
				zap.String("teacher_id", teacherID.String()),
				zap.String("billing_period", period.String()),
				zap.Error(err),
			)
			continue
		}
		swept++
	}

	if swept > 0 {
		s.log.Info("closed out billing period",
			zap.String("billing_period", period.String()),
			zap.Int("recomputed", swept),
		)
	}
	return nil
}

// refreshStale recomputes records whose lessons changed after the record
// was calculated.
func (s *Scheduler) refreshStale(ctx context.Context, period payoutdomain.Period) error {
	start, next := period.Range()

	var teacherIDs []snowflake.ID
	err := s.db.WithContext(ctx).
		Model(&payoutdomain.PayoutRecord{}).
		Distinct("payout_records.teacher_id").
		Joins("JOIN lessons ON lessons.teacher_id = payout_records.teacher_id").
		Where("payout_records.billing_period = ?", period.String()).
		Where("lessons.start_at >= ? AND lessons.start_at < ?", start, next).
		Where("lessons.updated_at > payout_records.calculated_at").
		Limit(s.cfg.BatchSize).
		Pluck("payout_records.teacher_id", &teacherIDs).Error
	if err != nil {
		return err
	}

	for _, teacherID := range teacherIDs {
		if _, err := s.payoutSvc.RecomputeForLesson(ctx, teacherID, start); err != nil {
			s.log.Warn("stale payout refresh failed",
				zap.String("teacher_id", teacherID.String()),
				zap.String("billing_period", period.String()),
				zap.Error(err),
			)
		}
	}

	if len(teacherIDs) > 0 {
		s.log.Info("refreshed stale payouts",
			zap.String("billing_period", period.String()),
			zap.Int("recomputed", len(teacherIDs)),
		)
	}
	return nil
}
