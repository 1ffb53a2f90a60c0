package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	sqlite "github.com/glebarez/sqlite"
	"github.com/skolarhq/skolar/internal/authorization"
	"github.com/skolarhq/skolar/internal/clock"
	"github.com/skolarhq/skolar/internal/config"
	"github.com/skolarhq/skolar/internal/identity"
	lessondomain "github.com/skolarhq/skolar/internal/lesson/domain"
	payoutdomain "github.com/skolarhq/skolar/internal/payout/domain"
	payoutrepo "github.com/skolarhq/skolar/internal/payout/repository"
	teacherdomain "github.com/skolarhq/skolar/internal/teacher/domain"
	teacherservice "github.com/skolarhq/skolar/internal/teacher/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type payoutTestEnv struct {
	svc   payoutdomain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock

	teacher teacherdomain.Teacher

	adminCtx   context.Context
	teacherCtx context.Context
	studentCtx context.Context
}

func setupPayoutEnv(t *testing.T) *payoutTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(
		&teacherdomain.Teacher{},
		&lessondomain.Lesson{},
		&payoutdomain.PayoutRecord{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	authzSvc := authorization.NewService(authorization.Params{
		Log:      zap.NewNop(),
		Enforcer: enforcer,
	})

	teacherSvc := teacherservice.NewService(teacherservice.ServiceParam{
		DB:  db,
		Log: zap.NewNop(),
	})

	fakeClock := clock.NewFakeClock(time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC))

	svc := NewService(ServiceParam{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  fakeClock,
		Config: config.NewStaticPayoutConfigHolder(config.PayoutConfig{DefaultHourlyRate: 210}),

		Repo:       payoutrepo.Provide(),
		Ledger:     payoutrepo.ProvideLedger(db),
		TeacherSvc: teacherSvc,
		Authorizer: authzSvc,
	})

	teacher := teacherdomain.Teacher{
		ID:          node.Generate(),
		UserID:      node.Generate(),
		DisplayName: "Ada Instructor",
		Email:       "ada@example.com",
	}
	require.NoError(t, db.Create(&teacher).Error)

	env := &payoutTestEnv{
		svc:     svc,
		db:      db,
		node:    node,
		clock:   fakeClock,
		teacher: teacher,
	}
	env.adminCtx = identity.WithIdentity(context.Background(), identity.Identity{
		UserID: node.Generate(),
		Role:   identity.RoleAdmin,
	})
	env.teacherCtx = identity.WithIdentity(context.Background(), identity.Identity{
		UserID: teacher.UserID,
		Role:   identity.RoleTeacher,
	})
	env.studentCtx = identity.WithIdentity(context.Background(), identity.Identity{
		UserID: node.Generate(),
		Role:   identity.RoleStudent,
	})
	return env
}

func (env *payoutTestEnv) addLesson(t *testing.T, startAt time.Time, duration time.Duration, completed bool) lessondomain.Lesson {
	t.Helper()
	lesson := lessondomain.Lesson{
		ID:          env.node.Generate(),
		TeacherID:   env.teacher.ID,
		StudentID:   env.node.Generate(),
		StartAt:     startAt,
		EndAt:       startAt.Add(duration),
		IsCompleted: completed,
	}
	require.NoError(t, env.db.Create(&lesson).Error)
	return lesson
}

func TestGetComputesOnFirstRead(t *testing.T) {
	env := setupPayoutEnv(t)
	env.addLesson(t, time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC), 90*time.Minute, true)
	env.addLesson(t, time.Date(2024, time.March, 11, 10, 0, 0, 0, time.UTC), time.Hour, true)

	record, err := env.svc.Get(env.adminCtx, payoutdomain.GetPayoutRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, record.TotalLessons)
	assert.InDelta(t, 2.5, record.TotalHours, 1e-9)
	assert.InDelta(t, 210, record.RatePerHour, 1e-9)
	assert.InDelta(t, 525, record.TotalAmount, 1e-9)
	assert.Equal(t, "2024-03", record.BillingPeriod)
	assert.True(t, record.CalculatedAt.Equal(env.clock.Now()))
}

func TestGetZeroLessonsIsZeroRecord(t *testing.T) {
	env := setupPayoutEnv(t)

	record, err := env.svc.Get(env.adminCtx, payoutdomain.GetPayoutRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-04",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, record.TotalLessons)
	assert.Zero(t, record.TotalHours)
	assert.Zero(t, record.TotalAmount)
}

func TestGetDoesNotRecomputeStoredRecord(t *testing.T) {
	env := setupPayoutEnv(t)
	env.addLesson(t, time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC), time.Hour, true)

	first, err := env.svc.Get(env.adminCtx, payoutdomain.GetPayoutRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
	})
	require.NoError(t, err)

	// New billable work lands after the record was stored.
	env.addLesson(t, time.Date(2024, time.March, 20, 10, 0, 0, 0, time.UTC), time.Hour, true)
	env.clock.Advance(time.Hour)

	second, err := env.svc.Get(env.adminCtx, payoutdomain.GetPayoutRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
	})
	require.NoError(t, err)

	assert.Equal(t, first.TotalLessons, second.TotalLessons)
	assert.True(t, first.CalculatedAt.Equal(second.CalculatedAt))

	// An explicit recompute picks up the new lesson.
	refreshed, err := env.svc.Recompute(env.adminCtx, payoutdomain.RecomputeRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed.TotalLessons)
}

func TestPeriodBoundaries(t *testing.T) {
	env := setupPayoutEnv(t)
	// First instant of March belongs to March.
	env.addLesson(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), time.Hour, true)
	// First instant of April does not.
	env.addLesson(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), time.Hour, true)
	// A lesson starting in March and ending in April bills to March in full.
	env.addLesson(t, time.Date(2024, time.March, 31, 23, 30, 0, 0, time.UTC), time.Hour, true)

	record, err := env.svc.Recompute(env.adminCtx, payoutdomain.RecomputeRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, record.TotalLessons)
	assert.InDelta(t, 2.0, record.TotalHours, 1e-9)
}

func TestIncompleteLessonsExcluded(t *testing.T) {
	env := setupPayoutEnv(t)
	env.addLesson(t, time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC), time.Hour, true)
	pending := env.addLesson(t, time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC), time.Hour, false)

	record, err := env.svc.Recompute(env.adminCtx, payoutdomain.RecomputeRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, record.TotalLessons)

	require.NoError(t, env.db.Model(&lessondomain.Lesson{}).
		Where("id = ?", pending.ID).
		Update("is_completed", true).Error)

	record, err = env.svc.RecomputeForLesson(context.Background(), env.teacher.ID, pending.StartAt)
	require.NoError(t, err)
	assert.Equal(t, 2, record.TotalLessons)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	env := setupPayoutEnv(t)
	env.addLesson(t, time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC), time.Hour, true)

	first, err := env.svc.Recompute(env.adminCtx, payoutdomain.RecomputeRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
	})
	require.NoError(t, err)

	second, err := env.svc.Recompute(env.adminCtx, payoutdomain.RecomputeRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
	})
	require.NoError(t, err)

	assert.Equal(t, first.TotalAmount, second.TotalAmount)

	var count int64
	require.NoError(t, env.db.Model(&payoutdomain.PayoutRecord{}).
		Where("teacher_id = ?", env.teacher.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSetRateRecomputesOnlyThatPeriod(t *testing.T) {
	env := setupPayoutEnv(t)
	env.addLesson(t, time.Date(2024, time.February, 5, 10, 0, 0, 0, time.UTC), time.Hour, true)
	env.addLesson(t, time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC), 150*time.Minute, true)

	february, err := env.svc.Recompute(env.adminCtx, payoutdomain.RecomputeRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-02",
	})
	require.NoError(t, err)

	march, err := env.svc.SetRate(env.adminCtx, payoutdomain.SetRateRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
		RatePerHour:   250,
	})
	require.NoError(t, err)

	assert.InDelta(t, 250, march.RatePerHour, 1e-9)
	assert.InDelta(t, 625, march.TotalAmount, 1e-9)

	unchanged, err := env.svc.Get(env.adminCtx, payoutdomain.GetPayoutRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-02",
	})
	require.NoError(t, err)
	assert.Equal(t, february.RatePerHour, unchanged.RatePerHour)
	assert.Equal(t, february.TotalAmount, unchanged.TotalAmount)
}

func TestStoredRatePersistsAcrossRecomputes(t *testing.T) {
	env := setupPayoutEnv(t)
	env.addLesson(t, time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC), time.Hour, true)

	_, err := env.svc.SetRate(env.adminCtx, payoutdomain.SetRateRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
		RatePerHour:   250,
	})
	require.NoError(t, err)

	record, err := env.svc.Recompute(env.adminCtx, payoutdomain.RecomputeRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
	})
	require.NoError(t, err)
	assert.InDelta(t, 250, record.RatePerHour, 1e-9)
}

func TestTeacherBaseRatePreferredOverDefault(t *testing.T) {
	env := setupPayoutEnv(t)
	rate := 300.0
	require.NoError(t, env.db.Model(&teacherdomain.Teacher{}).
		Where("id = ?", env.teacher.ID).
		Update("hourly_rate", rate).Error)
	env.addLesson(t, time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC), time.Hour, true)

	record, err := env.svc.Recompute(env.adminCtx, payoutdomain.RecomputeRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
	})
	require.NoError(t, err)
	assert.InDelta(t, 300, record.RatePerHour, 1e-9)
}

func TestInvalidPeriodRejected(t *testing.T) {
	env := setupPayoutEnv(t)

	for _, period := range []string{"2024-3", "2024-13", "2024/03", "march", ""} {
		_, err := env.svc.Get(env.adminCtx, payoutdomain.GetPayoutRequest{
			TeacherID:     env.teacher.ID.String(),
			BillingPeriod: period,
		})
		assert.ErrorIs(t, err, payoutdomain.ErrInvalidPeriod, "period %q", period)
	}
}

func TestSetRateValidation(t *testing.T) {
	env := setupPayoutEnv(t)

	_, err := env.svc.SetRate(env.adminCtx, payoutdomain.SetRateRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
		RatePerHour:   0,
	})
	assert.ErrorIs(t, err, payoutdomain.ErrInvalidRate)

	_, err = env.svc.SetRate(env.adminCtx, payoutdomain.SetRateRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
		RatePerHour:   -10,
	})
	assert.ErrorIs(t, err, payoutdomain.ErrInvalidRate)
}

func TestUnknownTeacherNotFound(t *testing.T) {
	env := setupPayoutEnv(t)

	_, err := env.svc.Get(env.adminCtx, payoutdomain.GetPayoutRequest{
		TeacherID:     env.node.Generate().String(),
		BillingPeriod: "2024-03",
	})
	assert.ErrorIs(t, err, teacherdomain.ErrTeacherNotFound)
}

func TestTeacherSeesOwnPayoutOnly(t *testing.T) {
	env := setupPayoutEnv(t)
	env.addLesson(t, time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC), time.Hour, true)

	other := teacherdomain.Teacher{
		ID:          env.node.Generate(),
		UserID:      env.node.Generate(),
		DisplayName: "Grace Instructor",
		Email:       "grace@example.com",
	}
	require.NoError(t, env.db.Create(&other).Error)

	// Own payout, id omitted.
	record, err := env.svc.Get(env.teacherCtx, payoutdomain.GetPayoutRequest{
		BillingPeriod: "2024-03",
	})
	require.NoError(t, err)
	assert.Equal(t, env.teacher.ID, record.TeacherID)

	// Own payout, id spelled out.
	_, err = env.svc.Get(env.teacherCtx, payoutdomain.GetPayoutRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
	})
	require.NoError(t, err)

	// Somebody else's payout is off limits.
	_, err = env.svc.Get(env.teacherCtx, payoutdomain.GetPayoutRequest{
		TeacherID:     other.ID.String(),
		BillingPeriod: "2024-03",
	})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestStudentDenied(t *testing.T) {
	env := setupPayoutEnv(t)

	_, err := env.svc.Get(env.studentCtx, payoutdomain.GetPayoutRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
	})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestTeacherCannotOverrideRate(t *testing.T) {
	env := setupPayoutEnv(t)
	override := 999.0

	_, err := env.svc.Recompute(env.teacherCtx, payoutdomain.RecomputeRequest{
		BillingPeriod: "2024-03",
		RateOverride:  &override,
	})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = env.svc.SetRate(env.teacherCtx, payoutdomain.SetRateRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
		RatePerHour:   999,
	})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestUnauthenticatedRejected(t *testing.T) {
	env := setupPayoutEnv(t)

	_, err := env.svc.Get(context.Background(), payoutdomain.GetPayoutRequest{
		TeacherID:     env.teacher.ID.String(),
		BillingPeriod: "2024-03",
	})
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestListForPeriodCoversAllTeachers(t *testing.T) {
	env := setupPayoutEnv(t)
	env.addLesson(t, time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC), time.Hour, true)

	other := teacherdomain.Teacher{
		ID:          env.node.Generate(),
		UserID:      env.node.Generate(),
		DisplayName: "Grace Instructor",
		Email:       "grace@example.com",
	}
	require.NoError(t, env.db.Create(&other).Error)

	resp, err := env.svc.ListForPeriod(env.adminCtx, payoutdomain.ListPayoutsRequest{
		BillingPeriod: "2024-03",
	})
	require.NoError(t, err)

	require.Len(t, resp.Payouts, 2)
	byTeacher := map[snowflake.ID]payoutdomain.PayoutRecord{}
	for _, record := range resp.Payouts {
		byTeacher[record.TeacherID] = record
	}
	assert.Equal(t, 1, byTeacher[env.teacher.ID].TotalLessons)
	assert.Equal(t, 0, byTeacher[other.ID].TotalLessons)

	// Teachers cannot list the whole period.
	_, err = env.svc.ListForPeriod(env.teacherCtx, payoutdomain.ListPayoutsRequest{
		BillingPeriod: "2024-03",
	})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestConcurrentRecomputeKeepsSingleRow(t *testing.T) {
	env := setupPayoutEnv(t)
	env.addLesson(t, time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC), time.Hour, true)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Recompute(env.adminCtx, payoutdomain.RecomputeRequest{
				TeacherID:     env.teacher.ID.String(),
				BillingPeriod: "2024-03",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, env.db.Model(&payoutdomain.PayoutRecord{}).
		Where("teacher_id = ? AND billing_period = ?", env.teacher.ID, "2024-03").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
