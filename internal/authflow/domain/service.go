// Package domain defines the login, refresh and second-factor flows.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	// ErrInvalidCredentials covers every login failure: unknown login,
	// wrong password, deactivated account. Callers must not distinguish.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrTwoFANotConfigured = errors.New("two-factor not configured")
	ErrTwoFAEnabled       = errors.New("two-factor already enabled")
)

// RateLimitedError reports a denied rate-limit scope with the wait hint.
type RateLimitedError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited on %s, retry in %s", e.Scope, e.RetryAfter)
}

type LoginInput struct {
	Login    string
	Password string
	IP       string
}

// TokenPair is a full credential set. ExpiresIn is the access token
// lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginResult either carries a pair or a pending-2FA token, never both.
type LoginResult struct {
	Pair         *TokenPair
	Requires2FA  bool
	PendingToken string
}

// TwoFASetup is returned once from Setup2FA. The secret and backup codes
// are shown to the user a single time and stored only encrypted/hashed.
type TwoFASetup struct {
	Secret      string
	OtpauthURI  string
	BackupCodes []string
}

type Service interface {
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	// Verify2FA exchanges a pending-2FA token plus a TOTP or backup code
	// for a full pair. Backup codes are consumed on use.
	Verify2FA(ctx context.Context, pendingToken, code, ip string) (*TokenPair, error)
	// Refresh rotates: the presented refresh token is revoked and a new
	// pair issued. A revoked or expired token yields ErrUnauthenticated.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	// Logout revokes the refresh token. Idempotent: unknown or already
	// revoked tokens are not an error.
	Logout(ctx context.Context, refreshToken string) error

	Setup2FA(ctx context.Context, userID snowflake.ID) (*TwoFASetup, error)
	Confirm2FA(ctx context.Context, userID snowflake.ID, code string) error
	Disable2FA(ctx context.Context, userID snowflake.ID, code string) error
	RegenerateBackupCodes(ctx context.Context, userID snowflake.ID, code string) ([]string, error)
	TwoFAEnabled(ctx context.Context, userID snowflake.ID) (bool, error)
}
