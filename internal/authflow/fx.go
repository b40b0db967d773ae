package authflow

import (
	"github.com/comptoir-labs/comptoir/internal/authflow/service"
	"go.uber.org/fx"
)

var Module = fx.Module("authflow",
	fx.Provide(service.New),
)
