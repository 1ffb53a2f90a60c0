package domain

import (
	"context"
	"errors"
)

type ListLessonsRequest struct {
	TeacherID     string `json:"teacher_id"`
	BillingPeriod string `json:"billing_period"`
	// CompletedOnly narrows the listing to billable lessons.
	CompletedOnly bool `json:"completed_only"`
}

type ListLessonsResponse struct {
	Lessons []Lesson `json:"lessons"`
}

type SetCompletionRequest struct {
	LessonID  string `json:"lesson_id"`
	Completed bool   `json:"completed"`
}

// SetCompletionResponse reports the updated lesson and the payout refreshed
// by the completion change.
type SetCompletionResponse struct {
	Lesson Lesson `json:"lesson"`
	// PayoutRefreshed is false when the payout recompute was skipped
	// because the flag did not actually change.
	PayoutRefreshed bool `json:"payout_refreshed"`
}

type Service interface {
	ListForPeriod(ctx context.Context, req ListLessonsRequest) (ListLessonsResponse, error)
	// SetCompletion flips the completion flag and force-recomputes the
	// payout for the lesson's (teacher, period) key.
	SetCompletion(ctx context.Context, req SetCompletionRequest) (SetCompletionResponse, error)
}

var (
	ErrInvalidLessonID = errors.New("invalid_lesson_id")
	ErrLessonNotFound  = errors.New("lesson_not_found")
)
