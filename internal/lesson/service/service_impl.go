package service

import (
	"context"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/skolarhq/skolar/internal/authorization"
	"github.com/skolarhq/skolar/internal/clock"
	"github.com/skolarhq/skolar/internal/identity"
	"github.com/skolarhq/skolar/internal/lesson/domain"
	payoutdomain "github.com/skolarhq/skolar/internal/payout/domain"
	teacherdomain "github.com/skolarhq/skolar/internal/teacher/domain"
	"github.com/skolarhq/skolar/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock

	TeacherSvc teacherdomain.Service
	PayoutSvc  payoutdomain.Service
	Authorizer authorization.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  repository.Repository[domain.Lesson]

	teacherSvc teacherdomain.Service
	payoutSvc  payoutdomain.Service
	authorizer authorization.Service
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("lesson.service"),
		clock: p.Clock,
		repo:  repository.ProvideStore[domain.Lesson](p.DB),

		teacherSvc: p.TeacherSvc,
		payoutSvc:  p.PayoutSvc,
		authorizer: p.Authorizer,
	}
}

func (s *Service) ListForPeriod(ctx context.Context, req domain.ListLessonsRequest) (domain.ListLessonsResponse, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return domain.ListLessonsResponse{}, identity.ErrUnauthenticated
	}
	if err := s.authorizer.Authorize(ctx, caller, authorization.ObjectLesson, authorization.ActionLessonView); err != nil {
		return domain.ListLessonsResponse{}, err
	}

	teacherID, err := s.resolveTeacher(ctx, caller, req.TeacherID)
	if err != nil {
		return domain.ListLessonsResponse{}, err
	}
	period, err := payoutdomain.ParsePeriod(req.BillingPeriod)
	if err != nil {
		return domain.ListLessonsResponse{}, err
	}
	start, next := period.Range()

	query := s.db.WithContext(ctx).
		Where("teacher_id = ? AND start_at >= ? AND start_at < ?", teacherID, start, next)
	if req.CompletedOnly {
		query = query.Where("is_completed = ?", true)
	}

	var lessons []domain.Lesson
	if err := query.Order("start_at").Find(&lessons).Error; err != nil {
		return domain.ListLessonsResponse{}, err
	}
	return domain.ListLessonsResponse{Lessons: lessons}, nil
}

func (s *Service) SetCompletion(ctx context.Context, req domain.SetCompletionRequest) (domain.SetCompletionResponse, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return domain.SetCompletionResponse{}, identity.ErrUnauthenticated
	}
	if err := s.authorizer.Authorize(ctx, caller, authorization.ObjectLesson, authorization.ActionLessonToggleCompletion); err != nil {
		return domain.SetCompletionResponse{}, err
	}

	lessonID, err := parseLessonID(req.LessonID)
	if err != nil {
		return domain.SetCompletionResponse{}, err
	}
	lesson, err := s.repo.FindOne(ctx, &domain.Lesson{ID: lessonID})
	if err != nil {
		return domain.SetCompletionResponse{}, err
	}
	if lesson == nil {
		return domain.SetCompletionResponse{}, domain.ErrLessonNotFound
	}

	if caller.IsTeacher() {
		own, err := s.teacherSvc.ResolveUser(ctx, caller.UserID)
		if err != nil {
			return domain.SetCompletionResponse{}, err
		}
		if lesson.TeacherID != own.ID {
			return domain.SetCompletionResponse{}, authorization.ErrForbidden
		}
	}

	if lesson.IsCompleted == req.Completed {
		// No change, no recompute. The stored payout already reflects
		// this lesson's state.
		return domain.SetCompletionResponse{Lesson: *lesson}, nil
	}

	updates := map[string]interface{}{
		"is_completed": req.Completed,
		"updated_at":   s.clock.Now(),
	}
	err = s.db.WithContext(ctx).
		Model(&domain.Lesson{}).
		Where("id = ?", lesson.ID).
		Updates(updates).Error
	if err != nil {
		return domain.SetCompletionResponse{}, err
	}
	lesson.IsCompleted = req.Completed

	if _, err := s.payoutSvc.RecomputeForLesson(ctx, lesson.TeacherID, lesson.StartAt); err != nil {
		// The flag is already flipped; surface the stale payout rather
		// than failing the toggle.
		s.log.Error("payout refresh after completion change failed",
			zap.String("lesson_id", lesson.ID.String()),
			zap.String("teacher_id", lesson.TeacherID.String()),
			zap.Error(err),
		)
		return domain.SetCompletionResponse{Lesson: *lesson}, nil
	}

	return domain.SetCompletionResponse{Lesson: *lesson, PayoutRefreshed: true}, nil
}

func (s *Service) resolveTeacher(ctx context.Context, caller identity.Identity, raw string) (snowflake.ID, error) {
	if caller.IsTeacher() {
		own, err := s.teacherSvc.ResolveUser(ctx, caller.UserID)
		if err != nil {
			return 0, err
		}
		if raw == "" {
			return own.ID, nil
		}
		requested, err := parseLessonTeacherID(raw)
		if err != nil {
			return 0, err
		}
		if requested != own.ID {
			return 0, authorization.ErrForbidden
		}
		return own.ID, nil
	}

	teacherID, err := parseLessonTeacherID(raw)
	if err != nil {
		return 0, err
	}
	if _, err := s.teacherSvc.GetByID(ctx, teacherID); err != nil {
		return 0, err
	}
	return teacherID, nil
}

func parseLessonID(raw string) (snowflake.ID, error) {
	if raw == "" {
		return 0, domain.ErrInvalidLessonID
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		return 0, domain.ErrInvalidLessonID
	}
	return snowflake.ID(parsed), nil
}

func parseLessonTeacherID(raw string) (snowflake.ID, error) {
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		return 0, teacherdomain.ErrInvalidID
	}
	return snowflake.ID(parsed), nil
}
