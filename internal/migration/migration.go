// Package migration creates the schema on startup and runs the bootstrap
// seeds. AutoMigrate keeps the install additive: columns and indexes are
// added, never dropped.
package migration

import (
	"context"

	aidomain "github.com/comptoir-labs/comptoir/internal/aiprovider/domain"
	identitydomain "github.com/comptoir-labs/comptoir/internal/identity/domain"
	permdomain "github.com/comptoir-labs/comptoir/internal/permission/domain"
	"github.com/comptoir-labs/comptoir/internal/store"
	subsdomain "github.com/comptoir-labs/comptoir/internal/subscription/domain"
	tenantdomain "github.com/comptoir-labs/comptoir/internal/tenant/domain"
	"gorm.io/gorm"
)

func Run(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(
		&identitydomain.User{},
		&identitydomain.RefreshToken{},
		&identitydomain.TOTPConfig{},
		&tenantdomain.Tenant{},
		&subsdomain.Plan{},
		&subsdomain.Subscription{},
		&permdomain.UserPermission{},
		&aidomain.Provider{},
		&store.Product{},
		&store.Order{},
	)
}
