package pipeline

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/pulse/internal/config"
)

var Module = fx.Module("pipeline.orchestrator",
	fx.Provide(NewRunStore),
	fx.Provide(func(cfg config.Config) Config {
		return Config{
			FanOutLimit:      cfg.Pipeline.FanOutLimit,
			ChurnHorizonDays: cfg.Pipeline.ChurnHorizon,
			ForecastMonths:   cfg.Pipeline.ForecastMonths,
		}.withDefaults()
	}),
	fx.Provide(New),
)
