package pricing

import (
	"github.com/smallbiznis/pulse/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.catalog",
	fx.Provide(service.New),
)
