package migration

import (
	auditdomain "github.com/skolarhq/skolar/internal/audit/domain"
	"github.com/skolarhq/skolar/internal/config"
	lessondomain "github.com/skolarhq/skolar/internal/lesson/domain"
	payoutdomain "github.com/skolarhq/skolar/internal/payout/domain"
	"github.com/skolarhq/skolar/internal/seed"
	teacherdomain "github.com/skolarhq/skolar/internal/teacher/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql dev installs skip the versioned migrations
			// and let gorm derive the schema from the models.
			err := conn.AutoMigrate(
				&teacherdomain.Teacher{},
				&lessondomain.Lesson{},
				&payoutdomain.PayoutRecord{},
				&auditdomain.AuditLog{},
			)
			if err != nil {
				return err
			}
		}

		if !cfg.IsProduction() {
			return seed.EnsureDemoData(conn)
		}
		return nil
	}),
)
