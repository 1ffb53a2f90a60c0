package service

import (
	"context"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/skolarhq/skolar/internal/authorization"
	"github.com/skolarhq/skolar/internal/clock"
	"github.com/skolarhq/skolar/internal/config"
	"github.com/skolarhq/skolar/internal/identity"
	"github.com/skolarhq/skolar/internal/observability/metrics"
	"github.com/skolarhq/skolar/internal/payout/domain"
	teacherdomain "github.com/skolarhq/skolar/internal/teacher/domain"
	pkgdb "github.com/skolarhq/skolar/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config *config.PayoutConfigHolder

	Repo       domain.Repository
	Ledger     domain.LessonLedger
	TeacherSvc teacherdomain.Service
	Authorizer authorization.Service
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	config *config.PayoutConfigHolder

	repo       domain.Repository
	ledger     domain.LessonLedger
	teacherSvc teacherdomain.Service
	authorizer authorization.Service
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("payout.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		config: p.Config,

		repo:       p.Repo,
		ledger:     p.Ledger,
		teacherSvc: p.TeacherSvc,
		authorizer: p.Authorizer,
	}
}

func (s *Service) Get(ctx context.Context, req domain.GetPayoutRequest) (domain.PayoutRecord, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return domain.PayoutRecord{}, identity.ErrUnauthenticated
	}
	if err := s.authorizer.Authorize(ctx, caller, authorization.ObjectPayout, authorization.ActionPayoutView); err != nil {
		return domain.PayoutRecord{}, err
	}

	teacherID, err := s.resolveTeacher(ctx, caller, req.TeacherID)
	if err != nil {
		return domain.PayoutRecord{}, err
	}
	period, err := domain.ParsePeriod(req.BillingPeriod)
	if err != nil {
		return domain.PayoutRecord{}, err
	}

	existing, err := s.repo.FindByKey(ctx, s.db, teacherID, period.String())
	if err != nil {
		return domain.PayoutRecord{}, err
	}
	if existing != nil {
		// Reads never recompute. A stale aggregate stays stale until an
		// explicit recompute or a completion change refreshes it.
		return *existing, nil
	}
	return s.compute(ctx, teacherID, period, nil, metrics.TriggerLazyRead)
}

func (s *Service) ListForPeriod(ctx context.Context, req domain.ListPayoutsRequest) (domain.ListPayoutsResponse, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return domain.ListPayoutsResponse{}, identity.ErrUnauthenticated
	}
	if err := s.authorizer.Authorize(ctx, caller, authorization.ObjectPayout, authorization.ActionPayoutList); err != nil {
		return domain.ListPayoutsResponse{}, err
	}

	period, err := domain.ParsePeriod(req.BillingPeriod)
	if err != nil {
		return domain.ListPayoutsResponse{}, err
	}

	stored, err := s.repo.ListByPeriod(ctx, s.db, period.String())
	if err != nil {
		return domain.ListPayoutsResponse{}, err
	}
	have := make(map[snowflake.ID]domain.PayoutRecord, len(stored))
	for _, record := range stored {
		have[record.TeacherID] = record
	}

	teacherIDs, err := s.teacherSvc.ListIDs(ctx)
	if err != nil {
		return domain.ListPayoutsResponse{}, err
	}

	payouts := make([]domain.PayoutRecord, 0, len(teacherIDs))
	for _, teacherID := range teacherIDs {
		record, ok := have[teacherID]
		if !ok {
			record, err = s.compute(ctx, teacherID, period, nil, metrics.TriggerPeriodList)
			if err != nil {
				return domain.ListPayoutsResponse{}, err
			}
		}
		payouts = append(payouts, record)
	}

	return domain.ListPayoutsResponse{
		BillingPeriod: period.String(),
		Payouts:       payouts,
	}, nil
}

func (s *Service) Recompute(ctx context.Context, req domain.RecomputeRequest) (domain.PayoutRecord, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return domain.PayoutRecord{}, identity.ErrUnauthenticated
	}
	if err := s.authorizer.Authorize(ctx, caller, authorization.ObjectPayout, authorization.ActionPayoutRecompute); err != nil {
		return domain.PayoutRecord{}, err
	}
	if req.RateOverride != nil {
		// A teacher recomputing their own payout must not be able to pick
		// the rate. Only the set-rate permission unlocks overrides.
		if err := s.authorizer.Authorize(ctx, caller, authorization.ObjectPayout, authorization.ActionPayoutSetRate); err != nil {
			return domain.PayoutRecord{}, err
		}
		if err := s.validateRate(*req.RateOverride); err != nil {
			return domain.PayoutRecord{}, err
		}
	}

	teacherID, err := s.resolveTeacher(ctx, caller, req.TeacherID)
	if err != nil {
		return domain.PayoutRecord{}, err
	}
	period, err := domain.ParsePeriod(req.BillingPeriod)
	if err != nil {
		return domain.PayoutRecord{}, err
	}

	return s.compute(ctx, teacherID, period, req.RateOverride, metrics.TriggerManual)
}

func (s *Service) SetRate(ctx context.Context, req domain.SetRateRequest) (domain.PayoutRecord, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return domain.PayoutRecord{}, identity.ErrUnauthenticated
	}
	if err := s.authorizer.Authorize(ctx, caller, authorization.ObjectPayout, authorization.ActionPayoutSetRate); err != nil {
		return domain.PayoutRecord{}, err
	}
	if err := s.validateRate(req.RatePerHour); err != nil {
		return domain.PayoutRecord{}, err
	}

	teacherID, err := parseTeacherID(req.TeacherID)
	if err != nil {
		return domain.PayoutRecord{}, err
	}
	if _, err := s.teacherSvc.GetByID(ctx, teacherID); err != nil {
		return domain.PayoutRecord{}, err
	}
	period, err := domain.ParsePeriod(req.BillingPeriod)
	if err != nil {
		return domain.PayoutRecord{}, err
	}

	return s.compute(ctx, teacherID, period, &req.RatePerHour, metrics.TriggerRateChange)
}

func (s *Service) RecomputeForLesson(ctx context.Context, teacherID snowflake.ID, startAt time.Time) (domain.PayoutRecord, error) {
	if teacherID == 0 {
		return domain.PayoutRecord{}, domain.ErrInvalidTeacher
	}
	return s.compute(ctx, teacherID, domain.PeriodOf(startAt), nil, metrics.TriggerLessonToggle)
}

// compute derives the aggregate for (teacher, period) and atomically
// replaces whatever is stored under that key. A zero-lesson period produces
// a zero-amount record, never an error.
func (s *Service) compute(ctx context.Context, teacherID snowflake.ID, period domain.Period, rateOverride *float64, trigger string) (domain.PayoutRecord, error) {
	began := s.clock.Now()

	teacher, err := s.teacherSvc.GetByID(ctx, teacherID)
	if err != nil {
		return domain.PayoutRecord{}, err
	}

	rate, err := s.resolveRate(ctx, teacher, period, rateOverride)
	if err != nil {
		return domain.PayoutRecord{}, err
	}

	start, next := period.Range()
	lessons, err := s.ledger.ListCompleted(ctx, teacher.ID, start, next)
	if err != nil {
		return domain.PayoutRecord{}, err
	}

	var totalHours float64
	for _, lesson := range lessons {
		totalHours += lesson.Hours
	}

	record := domain.PayoutRecord{
		ID:            s.genID.Generate(),
		TeacherID:     teacher.ID,
		BillingPeriod: period.String(),
		TotalLessons:  len(lessons),
		TotalHours:    totalHours,
		RatePerHour:   rate,
		TotalAmount:   totalHours * rate,
		CalculatedAt:  s.clock.Now(),
	}

	stored, err := s.upsert(ctx, record)
	if err != nil {
		return domain.PayoutRecord{}, err
	}

	metrics.Payout().RecordRecompute(trigger, s.clock.Now().Sub(began))
	s.log.Debug("payout recomputed",
		zap.String("teacher_id", teacher.ID.String()),
		zap.String("billing_period", period.String()),
		zap.Int("total_lessons", stored.TotalLessons),
		zap.Float64("total_amount", stored.TotalAmount),
		zap.String("trigger", trigger),
	)
	return stored, nil
}

// upsert writes the record, retrying once when a concurrent writer wins the
// insert race on a dialect where on-conflict does not absorb it.
func (s *Service) upsert(ctx context.Context, record domain.PayoutRecord) (domain.PayoutRecord, error) {
	err := s.repo.Upsert(ctx, s.db, &record)
	if err != nil {
		if !pkgdb.IsDuplicateKeyErr(err) {
			return domain.PayoutRecord{}, err
		}
		metrics.Payout().RecordUpsertConflict()
		record.ID = s.genID.Generate()
		if err := s.repo.Upsert(ctx, s.db, &record); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.PayoutRecord{}, domain.ErrConflict
			}
			return domain.PayoutRecord{}, err
		}
	}

	// Re-read so callers see the row as stored, id included: when two
	// writers raced, the surviving row keeps the first writer's id.
	stored, err := s.repo.FindByKey(ctx, s.db, record.TeacherID, record.BillingPeriod)
	if err != nil {
		return domain.PayoutRecord{}, err
	}
	if stored == nil {
		return domain.PayoutRecord{}, domain.ErrConflict
	}
	return *stored, nil
}

// resolveRate walks the rate chain: explicit override, then the stored
// record's rate, then the teacher base rate, then the platform default.
func (s *Service) resolveRate(ctx context.Context, teacher teacherdomain.Teacher, period domain.Period, override *float64) (float64, error) {
	if override != nil {
		return *override, nil
	}
	existing, err := s.repo.FindByKey(ctx, s.db, teacher.ID, period.String())
	if err != nil {
		return 0, err
	}
	if existing != nil && existing.RatePerHour > 0 {
		return existing.RatePerHour, nil
	}
	if teacher.HourlyRate != nil && *teacher.HourlyRate > 0 {
		return *teacher.HourlyRate, nil
	}
	return s.config.Get().DefaultHourlyRate, nil
}

func (s *Service) validateRate(rate float64) error {
	if rate <= 0 {
		return domain.ErrInvalidRate
	}
	if max := s.config.Get().MaxHourlyRate; max > 0 && rate > max {
		return domain.ErrInvalidRate
	}
	return nil
}

// resolveTeacher applies the ownership policy: a teacher-role caller may
// omit the id (it defaults to their own record) but may never name another
// teacher's. Other roles must name the target explicitly.
func (s *Service) resolveTeacher(ctx context.Context, caller identity.Identity, raw string) (snowflake.ID, error) {
	if caller.IsTeacher() {
		own, err := s.teacherSvc.ResolveUser(ctx, caller.UserID)
		if err != nil {
			return 0, err
		}
		if raw == "" {
			return own.ID, nil
		}
		requested, err := parseTeacherID(raw)
		if err != nil {
			return 0, err
		}
		if requested != own.ID {
			return 0, authorization.ErrForbidden
		}
		return own.ID, nil
	}

	teacherID, err := parseTeacherID(raw)
	if err != nil {
		return 0, err
	}
	if _, err := s.teacherSvc.GetByID(ctx, teacherID); err != nil {
		return 0, err
	}
	return teacherID, nil
}

func parseTeacherID(raw string) (snowflake.ID, error) {
	if raw == "" {
		return 0, domain.ErrInvalidTeacher
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		return 0, domain.ErrInvalidTeacher
	}
	return snowflake.ID(parsed), nil
}
