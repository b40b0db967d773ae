package migration

import (
	"context"

	"github.com/bwmarrin/snowflake"
	aidomain "github.com/comptoir-labs/comptoir/internal/aiprovider/domain"
	"github.com/comptoir-labs/comptoir/internal/authorization"
	"github.com/comptoir-labs/comptoir/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migration",
	fx.Invoke(func(db *gorm.DB, node *snowflake.Node, authz authorization.Service, registry aidomain.Registry) error {
		ctx := context.Background()
		if err := Run(ctx, db); err != nil {
			return err
		}
		if err := seed.EnsurePlans(ctx, db, node); err != nil {
			return err
		}
		if err := seed.EnsureSuperAdmin(ctx, db, node, authz); err != nil {
			return err
		}
		return registry.SeedDefaults(ctx)
	}),
)
