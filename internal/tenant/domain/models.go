// Package domain contains the tenant record and the resolver contract.
// Tenants are keyed two ways: by public domain for storefront traffic and
// by company id for data isolation.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tenant is one installation of the platform. Domain serves the public
// storefront; BackofficeDomain serves the admin panel. CompanyID scopes
// every tenant-owned row and never changes after onboarding.
type Tenant struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	Name             string       `gorm:"type:text;not null"`
	Domain           string       `gorm:"type:text;not null;uniqueIndex"`
	BackofficeDomain string       `gorm:"column:backoffice_domain;type:text;not null;uniqueIndex"`
	CompanyID        snowflake.ID `gorm:"column:company_id;not null;uniqueIndex"`
	AdminEmail       string       `gorm:"column:admin_email;type:text;not null"`
	IsActive         bool         `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Tenant) TableName() string { return "tenants" }
