package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/skolarhq/skolar/internal/teacher/domain"
	"github.com/skolarhq/skolar/pkg/db/option"
	"github.com/skolarhq/skolar/pkg/db/pagination"
	"github.com/skolarhq/skolar/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo repository.Repository[domain.Teacher]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("teacher.service"),
		repo: repository.ProvideStore[domain.Teacher](p.DB),
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Teacher, error) {
	if id == 0 {
		return domain.Teacher{}, domain.ErrInvalidID
	}
	found, err := s.repo.FindOne(ctx, &domain.Teacher{ID: id})
	if err != nil {
		return domain.Teacher{}, err
	}
	if found == nil {
		return domain.Teacher{}, domain.ErrTeacherNotFound
	}
	return *found, nil
}

func (s *Service) ResolveUser(ctx context.Context, userID snowflake.ID) (domain.Teacher, error) {
	if userID == 0 {
		return domain.Teacher{}, domain.ErrInvalidID
	}
	found, err := s.repo.FindOne(ctx, &domain.Teacher{UserID: userID})
	if err != nil {
		return domain.Teacher{}, err
	}
	if found == nil {
		return domain.Teacher{}, domain.ErrTeacherNotFound
	}
	return *found, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTeacherRequest) (domain.ListTeacherResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.Find(ctx, &domain.Teacher{},
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize),
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
	)
	if err != nil {
		return domain.ListTeacherResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(t *domain.Teacher) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        t.ID.String(),
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	teachers := make([]domain.Teacher, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		teachers = append(teachers, *item)
	}

	resp := domain.ListTeacherResponse{Teachers: teachers}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) ListIDs(ctx context.Context) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := s.db.WithContext(ctx).
		Model(&domain.Teacher{}).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
