package observability

import (
	"github.com/comptoir-labs/comptoir/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		NewMetrics,
		func(m *Metrics) ratelimit.Metrics { return m },
	),
)
