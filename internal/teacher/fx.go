package teacher

import (
	"github.com/skolarhq/skolar/internal/teacher/service"
	"go.uber.org/fx"
)

var Module = fx.Module("teacher.service",
	fx.Provide(service.NewService),
)
