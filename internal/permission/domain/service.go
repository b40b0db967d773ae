package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/comptoir-labs/comptoir/internal/identity/domain"
	tenantdomain "github.com/comptoir-labs/comptoir/internal/tenant/domain"
	"github.com/comptoir-labs/comptoir/pkg/tenantctx"
)

// Action is what the caller intends to do with a module page.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

var (
	ErrForbidden      = errors.New("module access denied")
	ErrNotManager     = errors.New("manager role required")
	ErrSelfEdit       = errors.New("cannot edit own membership")
	ErrMemberNotFound = errors.New("team member not found")
)

// ModuleGrant is the requested access for one module in an invite or a
// permission update.
type ModuleGrant struct {
	Level         AccessLevel            `json:"level"`
	PageOverrides map[string]AccessLevel `json:"page_overrides,omitempty"`
}

type InviteInput struct {
	Email       string
	DisplayName string
	Grants      map[string]ModuleGrant
}

// InviteResult carries the one-time temp password; it is never persisted
// in the clear and never returned again.
type InviteResult struct {
	User         *identitydomain.User
	TempPassword string
}

type TeamMember struct {
	User        identitydomain.User
	IsManager   bool
	Permissions []UserPermission
}

// Engine answers module access questions and manages team membership.
// Every method runs inside an already-authorized tenant: callers resolve
// the tenant and pass both the acting principal and the tenant record.
type Engine interface {
	// Check applies the decision chain: manager allows everything inside
	// the plan's modules; otherwise the permission row decides, with page
	// overrides taking precedence.
	Check(ctx context.Context, p tenantctx.Principal, tenant *tenantdomain.Tenant, module, page string, action Action) error
	IsManager(ctx context.Context, p tenantctx.Principal, tenant *tenantdomain.Tenant) (bool, error)
	PermissionsFor(ctx context.Context, userID, tenantID snowflake.ID) ([]UserPermission, error)

	ListTeam(ctx context.Context, p tenantctx.Principal, tenant *tenantdomain.Tenant) ([]TeamMember, error)
	Invite(ctx context.Context, p tenantctx.Principal, tenant *tenantdomain.Tenant, in InviteInput) (*InviteResult, error)
	Remove(ctx context.Context, p tenantctx.Principal, tenant *tenantdomain.Tenant, userID snowflake.ID) error
	SetPermissions(ctx context.Context, p tenantctx.Principal, tenant *tenantdomain.Tenant, userID snowflake.ID, grants map[string]ModuleGrant) error
}

type Repository interface {
	Upsert(ctx context.Context, perm *UserPermission) error
	Find(ctx context.Context, userID, tenantID snowflake.ID, module string) (*UserPermission, error)
	ListForUser(ctx context.Context, userID, tenantID snowflake.ID) ([]UserPermission, error)
	CountForUser(ctx context.Context, userID, tenantID snowflake.ID) (int64, error)
	DeleteForUser(ctx context.Context, userID, tenantID snowflake.ID) error
}

var ErrPermissionNotFound = errors.New("permission row not found")
