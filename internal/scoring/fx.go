package scoring

import (
	"github.com/smallbiznis/pulse/internal/scoring/domain"
	"github.com/smallbiznis/pulse/internal/scoring/repository"
	"github.com/smallbiznis/pulse/internal/scoring/service"
	"go.uber.org/fx"
)

var Module = fx.Module("scoring.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) domain.Assessor { return svc }),
)
