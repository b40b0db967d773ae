package ratelimit

import (
	"context"

	"github.com/comptoir-labs/comptoir/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Metrics Metrics `optional:"true"`
}

// NewFromConfig connects the distributed backend when REDIS_HOST is set and
// falls back to the per-process store otherwise.
func NewFromConfig(lc fx.Lifecycle, p Params) *Limiter {
	addr := p.Cfg.RedisAddr()
	if addr == "" {
		return New(nil, p.Log, p.Metrics)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: p.Cfg.RedisPassword,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			return client.Close()
		},
	})
	return New(NewRedisBackend(client), p.Log, p.Metrics)
}

var Module = fx.Module("ratelimit",
	fx.Provide(NewFromConfig),
)
