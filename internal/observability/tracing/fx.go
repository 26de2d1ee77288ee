package tracing

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/pulse/internal/config"
)

// Module wires the tracer provider from application configuration.
var Module = fx.Module("tracing",
	fx.Provide(func(cfg config.Config) Config {
		return Config{
			Enabled:          cfg.Tracing.Enabled,
			ServiceName:      "pulse",
			ServiceVersion:   "dev",
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
			ExporterProtocol: cfg.Tracing.ExporterProtocol,
			SamplingRatio:    cfg.Tracing.SamplingRatio,
		}
	}),
	fx.Invoke(NewProvider),
)
