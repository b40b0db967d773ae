package token

import (
	"github.com/comptoir-labs/comptoir/internal/config"
	"go.uber.org/fx"
)

func NewFromConfig(cfg config.Config) (*Codec, error) {
	return NewCodec(Config{
		Secret:        cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		Pending2FATTL: cfg.Pending2FATTL,
	})
}

var Module = fx.Module("token",
	fx.Provide(NewFromConfig),
)
