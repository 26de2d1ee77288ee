package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/smallbiznis/pulse/internal/clock"
	"github.com/smallbiznis/pulse/internal/config"
	"github.com/smallbiznis/pulse/internal/events"
	"github.com/smallbiznis/pulse/internal/insight"
	"github.com/smallbiznis/pulse/internal/metricsrepo"
	"github.com/smallbiznis/pulse/internal/migration"
	"github.com/smallbiznis/pulse/internal/observability/logger"
	"github.com/smallbiznis/pulse/internal/observability/tracing"
	"github.com/smallbiznis/pulse/internal/pipeline"
	"github.com/smallbiznis/pulse/internal/pricing"
	"github.com/smallbiznis/pulse/internal/scheduler"
	"github.com/smallbiznis/pulse/internal/scoring"
	"github.com/smallbiznis/pulse/internal/seed"
	"github.com/smallbiznis/pulse/internal/server"
	"github.com/smallbiznis/pulse/internal/snapshot"
	"github.com/smallbiznis/pulse/pkg/db"
)

func main() {
	app := fx.New(
		logger.Module,
		config.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		clock.Module,
		tracing.Module,
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			return seed.EnsurePlanCatalog(conn)
		}),

		metricsrepo.Module,
		pricing.Module,
		snapshot.Module,
		scoring.Module,
		insight.Module,
		events.Module,
		pipeline.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}
