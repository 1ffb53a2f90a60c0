package audit

import (
	"github.com/skolarhq/skolar/internal/audit/repository"
	"github.com/skolarhq/skolar/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
