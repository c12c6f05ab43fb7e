package audit

import (
	"github.com/smallbiznis/waitline/internal/audit/repository"
	"github.com/smallbiznis/waitline/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit",
	fx.Provide(
		repository.NewRepository,
		service.NewService,
	),
)
