package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	sqlite "github.com/glebarez/sqlite"
	"github.com/skolarhq/skolar/internal/teacher/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTeacherService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.Teacher{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:  db,
		Log: zap.NewNop(),
	})
	return svc, db, node
}

func seedTeacher(t *testing.T, db *gorm.DB, node *snowflake.Node, name string) domain.Teacher {
	t.Helper()
	teacher := domain.Teacher{
		ID:          node.Generate(),
		UserID:      node.Generate(),
		DisplayName: name,
		Email:       fmt.Sprintf("%s@example.com", name),
	}
	require.NoError(t, db.Create(&teacher).Error)
	return teacher
}

func TestGetByID(t *testing.T) {
	svc, db, node := setupTeacherService(t)
	want := seedTeacher(t, db, node, "ada")

	got, err := svc.GetByID(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.DisplayName, got.DisplayName)

	_, err = svc.GetByID(context.Background(), node.Generate())
	assert.ErrorIs(t, err, domain.ErrTeacherNotFound)

	_, err = svc.GetByID(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestResolveUser(t *testing.T) {
	svc, db, node := setupTeacherService(t)
	want := seedTeacher(t, db, node, "ada")

	got, err := svc.ResolveUser(context.Background(), want.UserID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)

	_, err = svc.ResolveUser(context.Background(), node.Generate())
	assert.ErrorIs(t, err, domain.ErrTeacherNotFound)
}

func TestListPaginates(t *testing.T) {
	svc, db, node := setupTeacherService(t)
	for i := 0; i < 5; i++ {
		seedTeacher(t, db, node, fmt.Sprintf("teacher%d", i))
	}

	first, err := svc.List(context.Background(), domain.ListTeacherRequest{PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, first.Teachers, 3)
	assert.True(t, first.HasMore)
	assert.NotEmpty(t, first.NextPageToken)

	all, err := svc.List(context.Background(), domain.ListTeacherRequest{PageSize: 50})
	require.NoError(t, err)
	assert.Len(t, all.Teachers, 5)
	assert.False(t, all.HasMore)
}

func TestListIDs(t *testing.T) {
	svc, db, node := setupTeacherService(t)
	a := seedTeacher(t, db, node, "a")
	b := seedTeacher(t, db, node, "b")

	ids, err := svc.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{a.ID, b.ID}, ids)
}
