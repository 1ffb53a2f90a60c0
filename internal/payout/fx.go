package payout

import (
	"github.com/skolarhq/skolar/internal/payout/repository"
	"github.com/skolarhq/skolar/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(
		repository.Provide,
		repository.ProvideLedger,
		service.NewService,
	),
)
