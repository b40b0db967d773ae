// Package domain contains the permission rows and the engine contract.
// Rows are the source of truth; casbin groupings are a derived mirror.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AccessLevel orders none < read < full.
type AccessLevel string

const (
	AccessNone AccessLevel = "none"
	AccessRead AccessLevel = "read"
	AccessFull AccessLevel = "full"
)

// Valid reports whether the level is one of the three known values.
func (l AccessLevel) Valid() bool {
	return l == AccessNone || l == AccessRead || l == AccessFull
}

// Covers reports whether the level satisfies the required one.
func (l AccessLevel) Covers(required AccessLevel) bool {
	return rank(l) >= rank(required)
}

func rank(l AccessLevel) int {
	switch l {
	case AccessRead:
		return 1
	case AccessFull:
		return 2
	}
	return 0
}

// UserPermission grants one user one access level on one module inside one
// tenant. PageOverrides refines the module level per page; an override
// always wins over the module level.
type UserPermission struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	UserID        snowflake.ID      `gorm:"column:user_id;not null;uniqueIndex:idx_user_tenant_module"`
	TenantID      snowflake.ID      `gorm:"column:tenant_id;not null;uniqueIndex:idx_user_tenant_module"`
	Module        string            `gorm:"type:text;not null;uniqueIndex:idx_user_tenant_module"`
	AccessLevel   AccessLevel       `gorm:"column:access_level;type:text;not null"`
	PageOverrides datatypes.JSONMap `gorm:"column:page_overrides;type:text"`
	GrantedBy     snowflake.ID      `gorm:"column:granted_by;not null"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (UserPermission) TableName() string { return "user_permissions" }

// PageOverride reads the override for a page, if present and valid.
func (p *UserPermission) PageOverride(page string) (AccessLevel, bool) {
	if page == "" || p.PageOverrides == nil {
		return "", false
	}
	raw, ok := p.PageOverrides[page]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	level := AccessLevel(s)
	if !level.Valid() {
		return "", false
	}
	return level, true
}
