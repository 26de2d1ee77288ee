package scheduler

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/pulse/internal/clock"
	"github.com/smallbiznis/pulse/internal/pipeline"
)

// Config tunes the scheduled pipeline worker.
type Config struct {
	// RunInterval is the pause between pipeline runs.
	RunInterval time.Duration
	// RunTimeout bounds a single run end to end.
	RunTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 24 * time.Hour,
		RunTimeout:  30 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaults.RunTimeout
	}
	return c
}

type Params struct {
	fx.In

	Log          *zap.Logger
	Orchestrator *pipeline.Orchestrator
	Clock        clock.Clock
	Config       Config `optional:"true"`
}

// Worker triggers the metrics pipeline on a fixed interval. Each run
// covers the worker's current day; the snapshot upsert keeps repeated
// runs for the same day idempotent.
type Worker struct {
	log          *zap.Logger
	orchestrator *pipeline.Orchestrator
	clock        clock.Clock
	cfg          Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		log:          p.Log.Named("scheduler.worker"),
		orchestrator: p.Orchestrator,
		clock:        p.Clock,
		cfg:          p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("scheduled pipeline run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single pipeline run for the current day.
func (w *Worker) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.RunTimeout)
	defer cancel()

	asOf := w.clock.Now().Truncate(24 * time.Hour)
	_, err := w.orchestrator.Run(ctx, asOf, nil)
	return err
}
