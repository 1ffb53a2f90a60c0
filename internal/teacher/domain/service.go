package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/skolarhq/skolar/pkg/db/pagination"
)

type ListTeacherRequest struct {
	PageToken string
	PageSize  int32
}

type ListTeacherResponse struct {
	pagination.PageInfo
	Teachers []Teacher `json:"teachers"`
}

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (Teacher, error)
	// ResolveUser maps an authenticated user to their teacher record.
	ResolveUser(ctx context.Context, userID snowflake.ID) (Teacher, error)
	List(ctx context.Context, req ListTeacherRequest) (ListTeacherResponse, error)
	// ListIDs returns every teacher id, for period-wide payout aggregation.
	ListIDs(ctx context.Context) ([]snowflake.ID, error)
}

var (
	ErrInvalidID       = errors.New("invalid_teacher_id")
	ErrTeacherNotFound = errors.New("teacher_not_found")
)
