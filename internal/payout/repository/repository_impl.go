package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/skolarhq/skolar/internal/payout/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, teacherID snowflake.ID, period string) (*domain.PayoutRecord, error) {
	var record domain.PayoutRecord
	err := db.WithContext(ctx).
		Where("teacher_id = ? AND billing_period = ?", teacherID, period).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, record *domain.PayoutRecord) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "teacher_id"}, {Name: "billing_period"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_lessons",
				"total_hours",
				"rate_per_hour",
				"total_amount",
				"calculated_at",
				"updated_at",
			}),
		}).
		Create(record).Error
}

func (r *repo) ListByPeriod(ctx context.Context, db *gorm.DB, period string) ([]domain.PayoutRecord, error) {
	var records []domain.PayoutRecord
	err := db.WithContext(ctx).
		Where("billing_period = ?", period).
		Order("teacher_id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
