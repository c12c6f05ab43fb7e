package tenant

import (
	"github.com/smallbiznis/waitline/internal/tenant/repository"
	"github.com/smallbiznis/waitline/internal/tenant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewResolver),
	fx.Provide(service.NewService),
)
