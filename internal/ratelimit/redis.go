package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// windowScript increments the fixed-window counter and stamps the TTL on
// first hit, atomically. Returns {count, remaining window in ms}.
const windowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`

const backendTimeout = 2 * time.Second

type redisBackend struct {
	client *redis.Client
	script *redis.Script
}

// NewRedisBackend wraps a go-redis client as the distributed counter store.
func NewRedisBackend(client *redis.Client) *redisBackend {
	if client == nil {
		return nil
	}
	return &redisBackend{
		client: client,
		script: redis.NewScript(windowScript),
	}
}

func (b *redisBackend) windowIncr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()

	res, err := b.script.Run(ctx, b.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) < 2 {
		return 0, 0, redis.Nil
	}
	count := res[0]
	ttl := time.Duration(res[1]) * time.Millisecond
	return count, ttl, nil
}

func (b *redisBackend) setOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()
	return b.client.SetNX(ctx, key, 1, ttl).Result()
}
