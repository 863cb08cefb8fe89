package clickevent

import (
	"github.com/adlanelabs/adlane/internal/clickevent/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("clickevent",
	fx.Provide(repository.NewRepository),
)
