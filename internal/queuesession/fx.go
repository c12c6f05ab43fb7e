package queuesession

import (
	"github.com/smallbiznis/waitline/internal/queuesession/repository"
	"github.com/smallbiznis/waitline/internal/queuesession/service"
	"go.uber.org/fx"
)

var Module = fx.Module("queuesession",
	fx.Provide(
		repository.NewRepository,
		service.NewService,
	),
)
