package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByLogin(ctx context.Context, login string) (*User, error)
	// LowestActiveID returns the id of the oldest active non-shared user
	// in a company, used by manager detection.
	LowestActiveID(ctx context.Context, companyID snowflake.ID) (snowflake.ID, error)
	ListActive(ctx context.Context, companyID snowflake.ID) ([]User, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
}

type RefreshTokenRepository interface {
	CreateToken(ctx context.Context, tok *RefreshToken) error
	FindByJTI(ctx context.Context, jti string) (*RefreshToken, error)
	Revoke(ctx context.Context, jti string, revokedAt time.Time) error
	RevokeAllForUser(ctx context.Context, userID snowflake.ID, revokedAt time.Time) error
}

type TOTPRepository interface {
	Upsert(ctx context.Context, cfg *TOTPConfig) error
	FindByUser(ctx context.Context, userID snowflake.ID) (*TOTPConfig, error)
	UpdateTOTPFields(ctx context.Context, userID snowflake.ID, fields map[string]any) error
	DeleteByUser(ctx context.Context, userID snowflake.ID) error
}
