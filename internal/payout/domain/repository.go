package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByKey(ctx context.Context, db *gorm.DB, teacherID snowflake.ID, period string) (*PayoutRecord, error)
	// Upsert inserts the record or, when the (teacher_id, billing_period)
	// key already exists, overwrites the aggregate fields in place. The
	// statement is atomic; concurrent calls cannot leave two rows.
	Upsert(ctx context.Context, db *gorm.DB, record *PayoutRecord) error
	ListByPeriod(ctx context.Context, db *gorm.DB, period string) ([]PayoutRecord, error)
}
