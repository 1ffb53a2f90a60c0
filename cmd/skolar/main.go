package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/skolarhq/skolar/internal/migration"
	"github.com/skolarhq/skolar/internal/observability"
	"github.com/skolarhq/skolar/internal/scheduler"
	"github.com/skolarhq/skolar/internal/server"
	"github.com/skolarhq/skolar/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,

		// HTTP surface plus the domain modules it serves
		server.Module,

		// Background payout sweeps
		scheduler.Module,

		// Schema and bootstrap data
		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
