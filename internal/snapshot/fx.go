package snapshot

import (
	"github.com/smallbiznis/pulse/internal/snapshot/repository"
	"github.com/smallbiznis/pulse/internal/snapshot/service"
	"go.uber.org/fx"
)

var Module = fx.Module("snapshot.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
