// Package domain contains persistence models for the teacher directory.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Teacher is a directory entry for a teaching staff member.
type Teacher struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID      snowflake.ID      `gorm:"not null;uniqueIndex" json:"user_id"`
	DisplayName string            `gorm:"not null" json:"display_name"`
	Email       string            `gorm:"not null" json:"email"`
	// HourlyRate is the teacher's base rate; nil means the platform default.
	HourlyRate *float64          `gorm:"type:numeric" json:"hourly_rate,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Teacher) TableName() string { return "teachers" }
