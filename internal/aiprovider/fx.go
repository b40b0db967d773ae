package aiprovider

import (
	"github.com/comptoir-labs/comptoir/internal/aiprovider/repository"
	"github.com/comptoir-labs/comptoir/internal/aiprovider/service"
	"go.uber.org/fx"
)

var Module = fx.Module("aiprovider",
	fx.Provide(
		repository.New,
		service.New,
	),
)
