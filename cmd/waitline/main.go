package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/waitline/internal/clock"
	"github.com/smallbiznis/waitline/internal/config"
	"github.com/smallbiznis/waitline/internal/logger"
	"github.com/smallbiznis/waitline/internal/migration"
	"github.com/smallbiznis/waitline/internal/scheduler"
	"github.com/smallbiznis/waitline/internal/seed"
	"github.com/smallbiznis/waitline/internal/server"
	"github.com/smallbiznis/waitline/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		logger.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		scheduler.Module,
		fx.Invoke(seedDev),
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// seedDev bootstraps the default tenant and credentials outside
// production so a fresh checkout is immediately usable.
func seedDev(cfg config.Config, conn *gorm.DB) error {
	if cfg.Environment == "production" {
		return nil
	}
	return seed.EnsureDefaultTenantAndAdmin(conn)
}
