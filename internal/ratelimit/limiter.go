// Package ratelimit provides fixed-window admission control and single-shot
// deduplication, backed by redis with an in-process fallback.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Scope names a rate-limited surface. Identity is the client IP for
// anonymous scopes and the user id for authenticated ones.
type Scope struct {
	Name    string
	MaxHits int64
	Window  time.Duration
}

// Well-known scopes. Login and 2FA protect the credential surface; the api
// scope bounds authenticated traffic; product_view is the dedup window for
// view counting.
var (
	ScopeLogin       = Scope{Name: "login", MaxHits: 10, Window: time.Minute}
	ScopeTwoFA       = Scope{Name: "twofa", MaxHits: 5, Window: time.Minute}
	ScopeAPI         = Scope{Name: "api", MaxHits: 120, Window: time.Minute}
	ScopeProductView = Scope{Name: "product_view", Window: time.Minute}
)

// Decision is the outcome of an admission attempt.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// backend is the atomic counter store contract. windowIncr returns the
// counter value after increment and the remaining window TTL.
type backend interface {
	windowIncr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
	setOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Limiter serializes admission decisions through its backend's atomic
// primitives. Backend failures never deny a request: rate limiting is a
// best-effort defense and the limiter fails open.
type Limiter struct {
	backend backend
	local   *localBackend
	log     *zap.Logger
	metrics Metrics
}

// Metrics receives admission outcomes; a nil-safe no-op by default.
type Metrics interface {
	RateLimitAllowed(scope string)
	RateLimitDenied(scope string)
}

type noopMetrics struct{}

func (noopMetrics) RateLimitAllowed(string) {}
func (noopMetrics) RateLimitDenied(string)  {}

// New builds a limiter. When backend is nil the in-process fallback is
// used; this is unsafe across multiple worker processes and production
// deployments must configure the distributed backend.
func New(b backend, log *zap.Logger, metrics Metrics) *Limiter {
	local := newLocalBackend()
	if b == nil {
		b = local
		log.Warn("rate limiter using in-process fallback; configure REDIS_HOST in production")
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Limiter{
		backend: b,
		local:   local,
		log:     log.Named("ratelimit"),
		metrics: metrics,
	}
}

// Admit atomically counts a hit against (scope, identity) and decides
// whether it fits the window. The error return is always nil today; it is
// kept so callers treat admission as fallible.
func (l *Limiter) Admit(ctx context.Context, scope Scope, identity string) (Decision, error) {
	if scope.MaxHits <= 0 {
		return Decision{Allowed: true}, nil
	}

	key := counterKey(scope.Name, identity)
	count, ttl, err := l.backend.windowIncr(ctx, key, scope.Window)
	if err != nil {
		l.log.Warn("rate limit backend unavailable, admitting",
			zap.String("scope", scope.Name),
			zap.Error(err),
		)
		count, ttl, err = l.local.windowIncr(ctx, key, scope.Window)
		if err != nil {
			return Decision{Allowed: true}, nil
		}
	}

	if count > scope.MaxHits {
		l.metrics.RateLimitDenied(scope.Name)
		if ttl <= 0 {
			ttl = scope.Window
		}
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}

	l.metrics.RateLimitAllowed(scope.Name)
	return Decision{Allowed: true, Remaining: scope.MaxHits - count}, nil
}

// TrySetOnce claims key for ttl. It returns true exactly once per window;
// callers use it for single-shot dedup such as view counting. Backend
// failure admits the action (fail-open), matching Admit.
func (l *Limiter) TrySetOnce(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := l.backend.setOnce(ctx, "dedup:"+key, ttl)
	if err != nil {
		l.log.Warn("rate limit backend unavailable for dedup", zap.Error(err))
		ok, err = l.local.setOnce(ctx, "dedup:"+key, ttl)
		if err != nil {
			return true
		}
	}
	return ok
}

func counterKey(scope, identity string) string {
	return fmt.Sprintf("rl:%s:%s", scope, identity)
}
