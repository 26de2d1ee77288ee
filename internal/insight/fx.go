package insight

import (
	"github.com/smallbiznis/pulse/internal/insight/repository"
	"github.com/smallbiznis/pulse/internal/insight/service"
	"go.uber.org/fx"
)

var Module = fx.Module("insight.service",
	fx.Provide(repository.NewInsightStore),
	fx.Provide(repository.NewAlertStore),
	fx.Provide(service.New),
)
