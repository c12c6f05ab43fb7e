package member

import "go.uber.org/fx"

var Module = fx.Module("member",
	fx.Provide(NewValidator),
)
