package lifecycle

import (
	"github.com/adlanelabs/adlane/internal/lifecycle/service"
	"go.uber.org/fx"
)

var Module = fx.Module("lifecycle.service",
	fx.Provide(service.NewService),
)
