package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type GetPayoutRequest struct {
	// TeacherID may be empty for teacher-role callers; it then defaults to
	// the caller's own teacher record.
	TeacherID     string `json:"teacher_id"`
	BillingPeriod string `json:"billing_period"`
}

type ListPayoutsRequest struct {
	BillingPeriod string `json:"billing_period"`
}

type ListPayoutsResponse struct {
	BillingPeriod string         `json:"billing_period"`
	Payouts       []PayoutRecord `json:"payouts"`
}

type RecomputeRequest struct {
	TeacherID     string   `json:"teacher_id"`
	BillingPeriod string   `json:"billing_period"`
	// RateOverride, when set, must be positive and is persisted as the
	// record's rate for this period until the next override.
	RateOverride *float64 `json:"rate_per_hour,omitempty"`
}

type SetRateRequest struct {
	TeacherID     string  `json:"teacher_id"`
	BillingPeriod string  `json:"billing_period"`
	RatePerHour   float64 `json:"rate_per_hour"`
}

// Service is the single authorization-checked entry point to the payout
// engine. Callers are identified through the request context; every method
// enforces the role and ownership policy before touching the store.
type Service interface {
	// Get returns the stored record unchanged, computing it only when absent.
	Get(ctx context.Context, req GetPayoutRequest) (PayoutRecord, error)
	// ListForPeriod returns a record per teacher for the period, computing
	// records for teachers that lack one. Admin only.
	ListForPeriod(ctx context.Context, req ListPayoutsRequest) (ListPayoutsResponse, error)
	// Recompute re-derives the record from current ledger state, replacing
	// any stored aggregate for the same key.
	Recompute(ctx context.Context, req RecomputeRequest) (PayoutRecord, error)
	// SetRate recomputes the period with an explicit rate. Admin only.
	SetRate(ctx context.Context, req SetRateRequest) (PayoutRecord, error)
	// RecomputeForLesson refreshes the payout covering a lesson's start
	// time. Internal trigger for completion-flag changes; skips caller
	// authorization.
	RecomputeForLesson(ctx context.Context, teacherID snowflake.ID, startAt time.Time) (PayoutRecord, error)
}

// LessonLedger is the read-only view of the scheduling subsystem's lesson
// records. Only completed lessons whose start falls in [startInclusive,
// endExclusive) are returned.
type LessonLedger interface {
	ListCompleted(ctx context.Context, teacherID snowflake.ID, startInclusive, endExclusive time.Time) ([]CompletedLesson, error)
}

var (
	ErrInvalidPeriod  = errors.New("invalid_billing_period")
	ErrInvalidRate    = errors.New("invalid_rate")
	ErrInvalidTeacher = errors.New("invalid_teacher")
	ErrPayoutNotFound = errors.New("payout_not_found")
	// ErrConflict marks a lost upsert race. The service retries once before
	// letting it escape.
	ErrConflict = errors.New("payout_conflict")
)
