package credentials

import (
	"github.com/comptoir-labs/comptoir/internal/config"
	"go.uber.org/fx"
)

func NewFromConfig(cfg config.Config) (*Store, error) {
	return NewStore(cfg.CredentialEncryptionKey)
}

var Module = fx.Module("credentials",
	fx.Provide(NewFromConfig),
)
