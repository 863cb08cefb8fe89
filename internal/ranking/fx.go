package ranking

import (
	"github.com/adlanelabs/adlane/internal/ranking/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ranking.service",
	fx.Provide(service.NewService),
)
