package adevents

import (
	"github.com/adlanelabs/adlane/internal/adevents/service"
	"go.uber.org/fx"
)

var Module = fx.Module("adevents",
	fx.Provide(service.NewRecorder),
)
