// Package domain contains the payout record model and the calculation
// contracts around it.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PayoutRecord is the persisted aggregate for one teacher and one billing
// period. It is derived state: recomputable from the lesson ledger at any
// time, and only ever replaced as a whole.
type PayoutRecord struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	TeacherID     snowflake.ID `gorm:"not null;uniqueIndex:ux_payout_teacher_period" json:"teacher_id"`
	BillingPeriod string       `gorm:"type:text;not null;uniqueIndex:ux_payout_teacher_period" json:"billing_period"`
	TotalLessons  int          `gorm:"not null" json:"total_lessons"`
	TotalHours    float64      `gorm:"not null" json:"total_hours"`
	RatePerHour   float64      `gorm:"not null" json:"rate_per_hour"`
	// TotalAmount always equals TotalHours * RatePerHour as of CalculatedAt.
	TotalAmount  float64   `gorm:"not null" json:"total_amount"`
	CalculatedAt time.Time `gorm:"not null" json:"calculated_at"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PayoutRecord) TableName() string { return "payout_records" }

// CompletedLesson is the slice of a ledger row the calculator needs. Hours
// is the billable duration, derived by the ledger from the row's start and
// end times.
type CompletedLesson struct {
	ID      snowflake.ID
	StartAt time.Time
	Hours   float64
}
