// Package seed provisions demo rows so a fresh install has something to
// show before the scheduling subsystem starts writing real lessons.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	lessondomain "github.com/skolarhq/skolar/internal/lesson/domain"
	teacherdomain "github.com/skolarhq/skolar/internal/teacher/domain"
	"gorm.io/gorm"
)

const (
	demoTeacherEmail   = "teacher@skolar.dev"
	demoTeacherDisplay = "Demo Teacher"
)

// EnsureDemoData seeds one teacher with a handful of lessons in the current
// month. Idempotent: keyed on the demo teacher's email.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var teacher teacherdomain.Teacher
		err := tx.WithContext(ctx).
			Where("email = ?", demoTeacherEmail).
			First(&teacher).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		rate := 240.0
		teacher = teacherdomain.Teacher{
			ID:          node.Generate(),
			UserID:      node.Generate(),
			DisplayName: demoTeacherDisplay,
			Email:       demoTeacherEmail,
			HourlyRate:  &rate,
		}
		if err := tx.WithContext(ctx).Create(&teacher).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		monthStart := time.Date(now.Year(), now.Month(), 1, 9, 0, 0, 0, time.UTC)
		lessons := []lessondomain.Lesson{
			{
				ID:          node.Generate(),
				TeacherID:   teacher.ID,
				StudentID:   node.Generate(),
				StartAt:     monthStart,
				EndAt:       monthStart.Add(90 * time.Minute),
				IsCompleted: true,
			},
			{
				ID:          node.Generate(),
				TeacherID:   teacher.ID,
				StudentID:   node.Generate(),
				StartAt:     monthStart.AddDate(0, 0, 2),
				EndAt:       monthStart.AddDate(0, 0, 2).Add(time.Hour),
				IsCompleted: true,
			},
			{
				ID:        node.Generate(),
				TeacherID: teacher.ID,
				StudentID: node.Generate(),
				StartAt:   monthStart.AddDate(0, 0, 9),
				EndAt:     monthStart.AddDate(0, 0, 9).Add(time.Hour),
			},
		}
		return tx.WithContext(ctx).Create(&lessons).Error
	})
}
