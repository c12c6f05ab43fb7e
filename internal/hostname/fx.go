package hostname

import (
	"github.com/smallbiznis/waitline/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("hostname",
	fx.Provide(func(cfg config.Config) *Classifier {
		return NewClassifier(cfg.LocalRootDomains)
	}),
)
