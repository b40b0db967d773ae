// Package tenantctx carries the authenticated principal and the resolved
// tenant through the request context.
package tenantctx

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type principalKey struct{}
type tenantKey struct{}
type tokenIDKey struct{}

// Principal is the context view of an authenticated user. Only the fields
// the authorization pipeline needs are carried; the full record stays in
// the identity store.
type Principal struct {
	UserID    snowflake.ID
	Login     string
	CompanyID snowflake.ID
	TenantID  snowflake.ID
}

// Tenant is the context view of the resolved tenant.
type Tenant struct {
	ID        snowflake.ID
	Domain    string
	CompanyID snowflake.ID
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func WithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, t)
}

func TenantFromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantKey{}).(Tenant)
	return t, ok
}

// WithTokenID stashes the jti of the bearer token for audit fields.
func WithTokenID(ctx context.Context, jti string) context.Context {
	return context.WithValue(ctx, tokenIDKey{}, jti)
}

func TokenIDFromContext(ctx context.Context) (string, bool) {
	jti, ok := ctx.Value(tokenIDKey{}).(string)
	return jti, ok
}
