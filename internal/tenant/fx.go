package tenant

import (
	"github.com/comptoir-labs/comptoir/internal/tenant/repository"
	"github.com/comptoir-labs/comptoir/internal/tenant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant",
	fx.Provide(
		repository.New,
		service.New,
	),
)
