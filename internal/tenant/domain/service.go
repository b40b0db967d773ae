package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/pkg/tenantctx"
)

var (
	ErrTenantUnknown     = errors.New("tenant unknown")
	ErrTenantExists      = errors.New("tenant already exists")
	ErrCrossTenantAccess = errors.New("cross tenant access")
)

// CreateInput is the onboarding request: a new tenant plus its first
// admin user and a trial subscription on the named plan.
type CreateInput struct {
	Name          string
	Domain        string
	AdminEmail    string
	AdminPassword string
	PlanCode      string
}

// Service resolves and onboards tenants. Authorize is the single place
// cross-tenant refusal happens; everything upstream only gathers the two
// company ids being compared.
type Service interface {
	// ResolveByDomain matches host against either the public or the
	// backoffice domain.
	ResolveByDomain(ctx context.Context, host string) (*Tenant, error)
	ResolveByID(ctx context.Context, id snowflake.ID) (*Tenant, error)
	// Authorize refuses principals whose home company differs from the
	// target tenant's. Superadmins bypass the check.
	Authorize(ctx context.Context, p tenantctx.Principal, target *Tenant, superadmin bool) error
	Create(ctx context.Context, in CreateInput) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
}

type Repository interface {
	Create(ctx context.Context, t *Tenant) error
	FindByDomain(ctx context.Context, host string) (*Tenant, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Tenant, error)
	FindByCompany(ctx context.Context, companyID snowflake.ID) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
}
