package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock is the time source used by lifecycle logic so tests can
// drive expiry and grace-period boundaries deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func NewSystemClock() Clock { return systemClock{} }

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
