// Package domain contains the identity records: principals and the token
// and second-factor state attached to them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// User represents a principal. Login is unique platform-wide; CompanyID
// pins the principal to its home tenant. Shared accounts (support bots,
// integrations) are flagged so they never count toward quotas or manager
// detection.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Login        string       `gorm:"type:text;not null;uniqueIndex"`
	DisplayName  string       `gorm:"type:text"`
	PasswordHash *string      `gorm:"type:text"`
	CompanyID    snowflake.ID `gorm:"column:company_id;not null;index"`
	IsActive     bool         `gorm:"column:is_active;not null;default:true"`
	IsShared     bool         `gorm:"column:is_shared;not null;default:false"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string { return "users" }

// RefreshToken is the persisted half of a refresh credential. The JWT
// carries the jti; the row decides whether it is still usable. A non-null
// RevokedAt makes it dead regardless of expiry.
type RefreshToken struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	JTI       string       `gorm:"column:jti;type:text;not null;uniqueIndex"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index"`
	ExpiresAt time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt *time.Time   `gorm:"column:revoked_at"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// TOTPConfig holds a user's second factor. The shared secret is stored
// encrypted; backup codes are stored as hashes only. The record is
// provisional (IsEnabled=false) between setup and confirm.
type TOTPConfig struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	UserID          snowflake.ID   `gorm:"column:user_id;not null;uniqueIndex"`
	EncryptedSecret string         `gorm:"column:encrypted_secret;type:text;not null"`
	BackupCodes     datatypes.JSON `gorm:"column:backup_codes;type:text"`
	IsEnabled       bool           `gorm:"column:is_enabled;not null;default:false"`
	EnabledAt       *time.Time     `gorm:"column:enabled_at"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TOTPConfig) TableName() string { return "totp_configs" }
