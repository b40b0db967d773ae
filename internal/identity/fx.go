package identity

import (
	"github.com/comptoir-labs/comptoir/internal/identity/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("identity",
	fx.Provide(repository.New),
)
