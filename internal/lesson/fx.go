package lesson

import (
	"github.com/skolarhq/skolar/internal/lesson/service"
	"go.uber.org/fx"
)

var Module = fx.Module("lesson.service",
	fx.Provide(service.NewService),
)
