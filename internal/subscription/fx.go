package subscription

import (
	"github.com/comptoir-labs/comptoir/internal/subscription/repository"
	"github.com/comptoir-labs/comptoir/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription",
	fx.Provide(
		repository.New,
		service.New,
	),
)
