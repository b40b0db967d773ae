package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/internal/aiprovider"
	"github.com/comptoir-labs/comptoir/internal/authflow"
	"github.com/comptoir-labs/comptoir/internal/authorization"
	"github.com/comptoir-labs/comptoir/internal/config"
	"github.com/comptoir-labs/comptoir/internal/credentials"
	"github.com/comptoir-labs/comptoir/internal/identity"
	"github.com/comptoir-labs/comptoir/internal/logger"
	"github.com/comptoir-labs/comptoir/internal/migration"
	"github.com/comptoir-labs/comptoir/internal/observability"
	"github.com/comptoir-labs/comptoir/internal/permission"
	"github.com/comptoir-labs/comptoir/internal/ratelimit"
	"github.com/comptoir-labs/comptoir/internal/server"
	"github.com/comptoir-labs/comptoir/internal/store"
	"github.com/comptoir-labs/comptoir/internal/subscription"
	"github.com/comptoir-labs/comptoir/internal/tenant"
	"github.com/comptoir-labs/comptoir/internal/token"
	"github.com/comptoir-labs/comptoir/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		// core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(registerSnowflake, openDatabase),

		// shared primitives
		token.Module,
		credentials.Module,
		ratelimit.Module,
		authorization.Module,
		store.Module,

		// functional domains
		identity.Module,
		tenant.Module,
		subscription.Module,
		permission.Module,
		authflow.Module,
		aiprovider.Module,

		migration.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func openDatabase(cfg config.Config) (*gorm.DB, error) {
	return db.Open(cfg.DB)
}
