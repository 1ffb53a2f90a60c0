// Package domain contains persistence models for scheduled lessons.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Lesson is one scheduled session between a teacher and a student. The
// scheduling subsystem owns creation and the end-after-start invariant;
// this service only reads lessons and flips the completion flag.
type Lesson struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	TeacherID   snowflake.ID      `gorm:"not null;index" json:"teacher_id"`
	StudentID   snowflake.ID      `gorm:"not null;index" json:"student_id"`
	StartAt     time.Time         `gorm:"not null;index" json:"start_at"`
	EndAt       time.Time         `gorm:"not null" json:"end_at"`
	IsCompleted bool              `gorm:"not null;default:false" json:"is_completed"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Lesson) TableName() string { return "lessons" }

// DurationHours is the billable length of the lesson.
func (l Lesson) DurationHours() float64 {
	return l.EndAt.Sub(l.StartAt).Hours()
}
