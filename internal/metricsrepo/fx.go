package metricsrepo

import (
	"github.com/smallbiznis/pulse/internal/config"
	"github.com/smallbiznis/pulse/internal/metricsrepo/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("metricsrepo",
	fx.Provide(func(cfg config.Config) repository.Config {
		return repository.Config{
			CallTimeout: cfg.Pipeline.RepoTimeout,
			RetryMax:    cfg.Pipeline.RetryMax,
		}
	}),
	fx.Provide(repository.New),
)
