// Package observability carries the prometheus instruments and the gin
// request logging middleware.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the application counters. It owns its registry so tests
// can build isolated instances.
type Metrics struct {
	registry         *prometheus.Registry
	httpRequests     *prometheus.CounterVec
	authFailures     *prometheus.CounterVec
	rateLimitAllowed *prometheus.CounterVec
	rateLimitDenied  *prometheus.CounterVec
	providerProbes   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "comptoir_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		authFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "comptoir_auth_failures_total",
			Help: "Authentication failures by kind.",
		}, []string{"kind"}),
		rateLimitAllowed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "comptoir_ratelimit_allowed_total",
			Help: "Admitted hits by rate limit scope.",
		}, []string{"scope"}),
		rateLimitDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "comptoir_ratelimit_denied_total",
			Help: "Denied hits by rate limit scope.",
		}, []string{"scope"}),
		providerProbes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "comptoir_ai_provider_probes_total",
			Help: "AI provider connection probes by outcome.",
		}, []string{"result"}),
	}
}

// Handler serves the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPRequest(route string, status int) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) AuthFailure(kind string) {
	m.authFailures.WithLabelValues(kind).Inc()
}

// RateLimitAllowed and RateLimitDenied satisfy the limiter's metrics hook.
func (m *Metrics) RateLimitAllowed(scope string) {
	m.rateLimitAllowed.WithLabelValues(scope).Inc()
}

func (m *Metrics) RateLimitDenied(scope string) {
	m.rateLimitDenied.WithLabelValues(scope).Inc()
}

func (m *Metrics) ProviderProbe(result string) {
	m.providerProbes.WithLabelValues(result).Inc()
}
