package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/pulse/internal/clock"
	"github.com/smallbiznis/pulse/internal/config"
	insightdomain "github.com/smallbiznis/pulse/internal/insight/domain"
	"github.com/smallbiznis/pulse/internal/observability/logger"
	"github.com/smallbiznis/pulse/internal/pipeline"
	snapshotdomain "github.com/smallbiznis/pulse/internal/snapshot/domain"
)

type Params struct {
	fx.In

	Log          *zap.Logger
	Config       config.Config
	Orchestrator *pipeline.Orchestrator
	Runs         pipeline.RunStore
	Alerts       insightdomain.AlertStore
	Insights     insightdomain.InsightStore
	Snapshots    snapshotdomain.Store
	Cohorts      snapshotdomain.Service
	Clock        clock.Clock
}

// Server exposes the admin API: pipeline triggers, alert lifecycle,
// and read access to insights and snapshots.
type Server struct {
	log          *zap.Logger
	addr         string
	orchestrator *pipeline.Orchestrator
	runs         pipeline.RunStore
	alerts       insightdomain.AlertStore
	insights     insightdomain.InsightStore
	snapshots    snapshotdomain.Store
	cohorts      snapshotdomain.Service
	clock        clock.Clock
}

func NewServer(p Params) *Server {
	return &Server{
		log:          p.Log.Named("server"),
		addr:         p.Config.HTTPAddr,
		orchestrator: p.Orchestrator,
		runs:         p.Runs,
		alerts:       p.Alerts,
		insights:     p.Insights,
		snapshots:    p.Snapshots,
		cohorts:      p.Cohorts,
		clock:        p.Clock,
	}
}

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	return engine
}

// RegisterRoutes attaches all admin routes to the engine.
func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	v1.POST("/pipeline/runs", s.TriggerRun)
	v1.GET("/pipeline/runs", s.ListRuns)
	v1.GET("/snapshots", s.ListSnapshots)
	v1.GET("/cohorts", s.ListCohorts)
	v1.GET("/insights", s.ListInsights)
	v1.GET("/alerts", s.ListAlerts)
	v1.POST("/alerts/:id/acknowledge", s.AcknowledgeAlert)
	v1.POST("/alerts/:id/resolve", s.ResolveAlert)
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, log *zap.Logger, cfg config.Config, engine *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
