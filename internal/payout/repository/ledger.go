package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	lessondomain "github.com/skolarhq/skolar/internal/lesson/domain"
	"github.com/skolarhq/skolar/internal/payout/domain"
	"gorm.io/gorm"
)

// lessonLedger reads the scheduling subsystem's lessons table directly. The
// payout engine only needs completed rows in a time window, so it skips the
// lesson service and its authorization layer.
type lessonLedger struct {
	db *gorm.DB
}

func ProvideLedger(db *gorm.DB) domain.LessonLedger {
	return &lessonLedger{db: db}
}

func (l *lessonLedger) ListCompleted(ctx context.Context, teacherID snowflake.ID, startInclusive, endExclusive time.Time) ([]domain.CompletedLesson, error) {
	var lessons []lessondomain.Lesson
	err := l.db.WithContext(ctx).
		Where("teacher_id = ? AND is_completed = ? AND start_at >= ? AND start_at < ?",
			teacherID, true, startInclusive, endExclusive).
		Order("start_at").
		Find(&lessons).Error
	if err != nil {
		return nil, err
	}

	completed := make([]domain.CompletedLesson, 0, len(lessons))
	for _, lesson := range lessons {
		completed = append(completed, domain.CompletedLesson{
			ID:      lesson.ID,
			StartAt: lesson.StartAt,
			Hours:   lesson.DurationHours(),
		})
	}
	return completed, nil
}
