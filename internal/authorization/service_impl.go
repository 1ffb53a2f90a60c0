package authorization

import (
	_ "embed"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/skolarhq/skolar/internal/identity"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectPayout  = "payout"
	ObjectLesson  = "lesson"
	ObjectTeacher = "teacher"
	ObjectAudit   = "audit"
)

const (
	ActionPayoutView      = "payout.view"
	ActionPayoutList      = "payout.list"
	ActionPayoutRecompute = "payout.recompute"
	ActionPayoutSetRate   = "payout.set_rate"

	ActionLessonView             = "lesson.view"
	ActionLessonToggleCompletion = "lesson.toggle_completion"

	ActionTeacherView = "teacher.view"
	ActionTeacherList = "teacher.list"

	ActionAuditList = "audit.list"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

// Service answers "may this caller perform this action". Ownership checks
// (a teacher touching only their own payouts) stay in the domain services;
// this layer only knows roles.
type Service interface {
	Authorize(ctx context.Context, id identity.Identity, object, action string) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, id identity.Identity, object, action string) error {
	if id.UserID == 0 || !identity.ValidRole(id.Role) {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := roleSubject(id.Role)
	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("user_id", id.UserID.String()),
			zap.String("role", id.Role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func roleSubject(role string) string {
	return fmt.Sprintf("role:%s", strings.ToLower(strings.TrimSpace(role)))
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{roleSubject(identity.RoleAdmin), ObjectPayout, ActionPayoutView},
		{roleSubject(identity.RoleAdmin), ObjectPayout, ActionPayoutList},
		{roleSubject(identity.RoleAdmin), ObjectPayout, ActionPayoutRecompute},
		{roleSubject(identity.RoleAdmin), ObjectPayout, ActionPayoutSetRate},
		{roleSubject(identity.RoleAdmin), ObjectLesson, ActionLessonView},
		{roleSubject(identity.RoleAdmin), ObjectLesson, ActionLessonToggleCompletion},
		{roleSubject(identity.RoleAdmin), ObjectTeacher, ActionTeacherView},
		{roleSubject(identity.RoleAdmin), ObjectTeacher, ActionTeacherList},
		{roleSubject(identity.RoleAdmin), ObjectAudit, ActionAuditList},

		{roleSubject(identity.RoleTeacher), ObjectPayout, ActionPayoutView},
		{roleSubject(identity.RoleTeacher), ObjectPayout, ActionPayoutRecompute},
		{roleSubject(identity.RoleTeacher), ObjectLesson, ActionLessonView},
		{roleSubject(identity.RoleTeacher), ObjectLesson, ActionLessonToggleCompletion},
		{roleSubject(identity.RoleTeacher), ObjectTeacher, ActionTeacherView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return err
		}
	}
	return nil
}

var Module = fx.Module("authorization",
	fx.Provide(
		NewEnforcer,
		NewService,
	),
)
