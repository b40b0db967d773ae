// Package seed bootstraps the minimum data a fresh install needs: the
// plan catalog and, outside production, a platform admin account.
package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/internal/authflow/password"
	"github.com/comptoir-labs/comptoir/internal/authorization"
	identitydomain "github.com/comptoir-labs/comptoir/internal/identity/domain"
	subsdomain "github.com/comptoir-labs/comptoir/internal/subscription/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultAdminEmail    = "admin@comptoir.shop"
	defaultAdminPassword = "admin"
	defaultAdminDisplay  = "Comptoir Admin"
)

type planSpec struct {
	code             string
	name             string
	maxProducts      int64
	maxUsers         int64
	maxOrdersPerYear int64
	modules          string
}

// Zero means unlimited. Starter gets the commerce core; the larger plans
// open every module.
var defaultPlans = []planSpec{
	{"starter", "Starter", 50, 2, 500, `["store","catalog","orders","settings"]`},
	{"standard", "Standard", 1000, 10, 10000, `[]`},
	{"premium", "Premium", 0, 0, 0, `[]`},
}

// EnsurePlans inserts any missing default plan; existing rows are left
// untouched so operators can tune limits in place.
func EnsurePlans(ctx context.Context, db *gorm.DB, node *snowflake.Node) error {
	for _, spec := range defaultPlans {
		var existing subsdomain.Plan
		err := db.WithContext(ctx).Where("code = ?", spec.code).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		plan := subsdomain.Plan{
			ID:               node.Generate(),
			Code:             spec.code,
			Name:             spec.name,
			MaxProducts:      spec.maxProducts,
			MaxUsers:         spec.maxUsers,
			MaxOrdersPerYear: spec.maxOrdersPerYear,
			Modules:          datatypes.JSON(spec.modules),
		}
		if err := db.WithContext(ctx).Create(&plan).Error; err != nil {
			return err
		}
	}
	return nil
}

// EnsureSuperAdmin creates the platform admin the first time the instance
// starts with an empty user table, and grants it the superadmin role. The
// default password must be rotated immediately; it exists so a self-hosted
// install is reachable out of the box.
func EnsureSuperAdmin(ctx context.Context, db *gorm.DB, node *snowflake.Node, authz authorization.Service) error {
	var count int64
	if err := db.WithContext(ctx).Model(&identitydomain.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := password.Hash(defaultAdminPassword)
	if err != nil {
		return err
	}
	admin := identitydomain.User{
		ID:           node.Generate(),
		Login:        strings.ToLower(defaultAdminEmail),
		DisplayName:  defaultAdminDisplay,
		PasswordHash: &hash,
		CompanyID:    node.Generate(),
		IsActive:     true,
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}
	return authz.GrantSuperadmin(ctx, admin.ID)
}
