package permission

import (
	"github.com/comptoir-labs/comptoir/internal/permission/repository"
	"github.com/comptoir-labs/comptoir/internal/permission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("permission",
	fx.Provide(
		repository.New,
		service.New,
	),
)
