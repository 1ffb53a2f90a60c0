package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skolarhq/skolar/internal/audit"
	auditdomain "github.com/skolarhq/skolar/internal/audit/domain"
	"github.com/skolarhq/skolar/internal/authorization"
	"github.com/skolarhq/skolar/internal/clock"
	"github.com/skolarhq/skolar/internal/config"
	"github.com/skolarhq/skolar/internal/identity"
	"github.com/skolarhq/skolar/internal/lesson"
	lessondomain "github.com/skolarhq/skolar/internal/lesson/domain"
	"github.com/skolarhq/skolar/internal/observability"
	obsmiddleware "github.com/skolarhq/skolar/internal/observability/logger"
	obsmetrics "github.com/skolarhq/skolar/internal/observability/metrics"
	obstracing "github.com/skolarhq/skolar/internal/observability/tracing"
	"github.com/skolarhq/skolar/internal/payout"
	payoutdomain "github.com/skolarhq/skolar/internal/payout/domain"
	"github.com/skolarhq/skolar/internal/ratelimit"
	"github.com/skolarhq/skolar/internal/teacher"
	teacherdomain "github.com/skolarhq/skolar/internal/teacher/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	clock.Module,
	identity.Module,
	authorization.Module,
	audit.Module,
	teacher.Module,
	lesson.Module,
	payout.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node

	identities identity.Provider
	authzSvc   authorization.Service
	teacherSvc teacherdomain.Service
	lessonSvc  lessondomain.Service
	payoutSvc  payoutdomain.Service
	auditSvc   auditdomain.Service

	recomputeLimiter *ratelimit.RecomputeLimiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	GenID      *snowflake.Node
	Identities identity.Provider
	AuthzSvc   authorization.Service
	TeacherSvc teacherdomain.Service
	LessonSvc  lessondomain.Service
	PayoutSvc  payoutdomain.Service
	AuditSvc   auditdomain.Service

	RecomputeLimiter *ratelimit.RecomputeLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		identities: p.Identities,
		authzSvc:   p.AuthzSvc,
		teacherSvc: p.TeacherSvc,
		lessonSvc:  p.LessonSvc,
		payoutSvc:  p.PayoutSvc,
		auditSvc:   p.AuditSvc,

		recomputeLimiter: p.RecomputeLimiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/api/v1", s.AuthRequired())

	payouts := v1.Group("/payouts")
	payouts.GET("", s.ListPayouts)
	payouts.GET("/:teacher_id/:period", s.GetPayout)
	payouts.POST("/:teacher_id/:period/recompute", s.RecomputeRateLimit(), s.RecomputePayout)
	payouts.PUT("/:teacher_id/:period/rate", s.RecomputeRateLimit(), s.SetPayoutRate)

	lessons := v1.Group("/lessons")
	lessons.PATCH("/:id/completion", s.SetLessonCompletion)

	teachers := v1.Group("/teachers")
	teachers.GET("", s.ListTeachers)
	teachers.GET("/:id", s.GetTeacher)
	teachers.GET("/:id/lessons", s.ListTeacherLessons)

	v1.GET("/audit-logs", s.ListAuditLogs)
}
