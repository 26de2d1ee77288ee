package scheduler

import (
	"context"

	"go.uber.org/fx"

	"github.com/smallbiznis/pulse/internal/config"
)

var Module = fx.Module("scheduler.worker",
	fx.Provide(func(cfg config.Config) Config {
		return Config{RunInterval: cfg.Pipeline.RunInterval}.withDefaults()
	}),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, worker *Worker) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
