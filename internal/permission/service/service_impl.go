package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/internal/authflow/password"
	"github.com/comptoir-labs/comptoir/internal/authorization"
	identitydomain "github.com/comptoir-labs/comptoir/internal/identity/domain"
	"github.com/comptoir-labs/comptoir/internal/permission/domain"
	subsdomain "github.com/comptoir-labs/comptoir/internal/subscription/domain"
	tenantdomain "github.com/comptoir-labs/comptoir/internal/tenant/domain"
	"github.com/comptoir-labs/comptoir/pkg/tenantctx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type engine struct {
	perms domain.Repository
	users identitydomain.Repository
	eval  subsdomain.Evaluator
	authz authorization.Service
	node  *snowflake.Node
	log   *zap.Logger
}

func New(
	perms domain.Repository,
	users identitydomain.Repository,
	eval subsdomain.Evaluator,
	authz authorization.Service,
	node *snowflake.Node,
	log *zap.Logger,
) domain.Engine {
	return &engine{
		perms: perms,
		users: users,
		eval:  eval,
		authz: authz,
		node:  node,
		log:   log.Named("permission.service"),
	}
}

func (e *engine) Check(ctx context.Context, p tenantctx.Principal, tenant *tenantdomain.Tenant, module, page string, action domain.Action) error {
	if !domain.KnownModule(module) {
		return domain.ErrForbidden
	}
	inPlan, err := e.moduleInPlan(ctx, tenant.ID, module)
	if err != nil {
		return err
	}
	if !inPlan {
		return domain.ErrForbidden
	}

	manager, err := e.IsManager(ctx, p, tenant)
	if err != nil {
		return err
	}
	if manager {
		return nil
	}

	perm, err := e.perms.Find(ctx, p.UserID, tenant.ID, module)
	if errors.Is(err, domain.ErrPermissionNotFound) {
		return domain.ErrForbidden
	}
	if err != nil {
		return err
	}

	level := perm.AccessLevel
	if override, ok := perm.PageOverride(page); ok {
		level = override
	}
	required := domain.AccessRead
	if action == domain.ActionWrite {
		required = domain.AccessFull
	}
	if !level.Covers(required) {
		return domain.ErrForbidden
	}
	return nil
}

// IsManager walks the detection chain: the tenant's admin email, then the
// oldest active non-shared member, then a superadmin holding no permission
// rows in this tenant.
func (e *engine) IsManager(ctx context.Context, p tenantctx.Principal, tenant *tenantdomain.Tenant) (bool, error) {
	if strings.EqualFold(p.Login, tenant.AdminEmail) {
		return true, nil
	}
	lowest, err := e.users.LowestActiveID(ctx, tenant.CompanyID)
	if err != nil && !errors.Is(err, identitydomain.ErrUserNotFound) {
		return false, err
	}
	if err == nil && lowest == p.UserID {
		return true, nil
	}

	super, err := e.authz.IsSuperadmin(ctx, p.UserID)
	if err != nil {
		return false, err
	}
	if !super {
		return false, nil
	}
	count, err := e.perms.CountForUser(ctx, p.UserID, tenant.ID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (e *engine) PermissionsFor(ctx context.Context, userID, tenantID snowflake.ID) ([]domain.UserPermission, error) {
	return e.perms.ListForUser(ctx, userID, tenantID)
}

func (e *engine) ListTeam(ctx context.Context, p tenantctx.Principal, tenant *tenantdomain.Tenant) ([]domain.TeamMember, error) {
	if err := e.requireManager(ctx, p, tenant); err != nil {
		return nil, err
	}
	users, err := e.users.ListActive(ctx, tenant.CompanyID)
	if err != nil {
		return nil, err
	}
	members := make([]domain.TeamMember, 0, len(users))
	for _, u := range users {
		perms, err := e.perms.ListForUser(ctx, u.ID, tenant.ID)
		if err != nil {
			return nil, err
		}
		manager, err := e.IsManager(ctx, tenantctx.Principal{
			UserID:    u.ID,
			Login:     u.Login,
			CompanyID: u.CompanyID,
		}, tenant)
		if err != nil {
			return nil, err
		}
		members = append(members, domain.TeamMember{
			User:        u,
			IsManager:   manager,
			Permissions: perms,
		})
	}
	return members, nil
}

func (e *engine) Invite(ctx context.Context, p tenantctx.Principal, tenant *tenantdomain.Tenant, in domain.InviteInput) (*domain.InviteResult, error) {
	if err := e.requireManager(ctx, p, tenant); err != nil {
		return nil, err
	}
	if err := e.eval.Check(ctx, tenant.CompanyID, tenant.ID, subsdomain.ResourceUsers); err != nil {
		return nil, err
	}

	temp, err := randomPassword()
	if err != nil {
		return nil, err
	}
	hash, err := password.Hash(temp)
	if err != nil {
		return nil, err
	}
	user := &identitydomain.User{
		ID:           e.node.Generate(),
		Login:        strings.ToLower(strings.TrimSpace(in.Email)),
		DisplayName:  in.DisplayName,
		PasswordHash: &hash,
		CompanyID:    tenant.CompanyID,
		IsActive:     true,
	}
	if err := e.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := e.applyGrants(ctx, user.ID, tenant.ID, p.UserID, in.Grants); err != nil {
		return nil, err
	}
	if err := e.syncGroups(ctx, user.ID, tenant.ID); err != nil {
		return nil, err
	}

	e.log.Info("team member invited",
		zap.Int64("tenant_id", int64(tenant.ID)),
		zap.Int64("user_id", int64(user.ID)),
		zap.Int64("invited_by", int64(p.UserID)),
	)
	return &domain.InviteResult{User: user, TempPassword: temp}, nil
}

func (e *engine) Remove(ctx context.Context, p tenantctx.Principal, tenant *tenantdomain.Tenant, userID snowflake.ID) error {
	if err := e.requireManager(ctx, p, tenant); err != nil {
		return err
	}
	if userID == p.UserID {
		return domain.ErrSelfEdit
	}
	target, err := e.findMember(ctx, userID, tenant.CompanyID)
	if err != nil {
		return err
	}

	if err := e.users.UpdateFields(ctx, target.ID, map[string]any{"is_active": false}); err != nil {
		return err
	}
	if err := e.perms.DeleteForUser(ctx, target.ID, tenant.ID); err != nil {
		return err
	}
	if err := e.authz.SetGroups(ctx, target.ID, tenant.ID, nil); err != nil {
		return err
	}

	e.log.Info("team member removed",
		zap.Int64("tenant_id", int64(tenant.ID)),
		zap.Int64("user_id", int64(target.ID)),
		zap.Int64("removed_by", int64(p.UserID)),
	)
	return nil
}

func (e *engine) SetPermissions(ctx context.Context, p tenantctx.Principal, tenant *tenantdomain.Tenant, userID snowflake.ID, grants map[string]domain.ModuleGrant) error {
	if err := e.requireManager(ctx, p, tenant); err != nil {
		return err
	}
	if userID == p.UserID {
		return domain.ErrSelfEdit
	}
	if _, err := e.findMember(ctx, userID, tenant.CompanyID); err != nil {
		return err
	}
	if err := e.applyGrants(ctx, userID, tenant.ID, p.UserID, grants); err != nil {
		return err
	}
	return e.syncGroups(ctx, userID, tenant.ID)
}

func (e *engine) requireManager(ctx context.Context, p tenantctx.Principal, tenant *tenantdomain.Tenant) error {
	manager, err := e.IsManager(ctx, p, tenant)
	if err != nil {
		return err
	}
	if !manager {
		return domain.ErrNotManager
	}
	return nil
}

func (e *engine) findMember(ctx context.Context, userID, companyID snowflake.ID) (*identitydomain.User, error) {
	user, err := e.users.FindByID(ctx, userID)
	if errors.Is(err, identitydomain.ErrUserNotFound) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.CompanyID != companyID {
		return nil, domain.ErrMemberNotFound
	}
	return user, nil
}

// applyGrants upserts one row per known module; unknown module ids are
// ignored so stale clients cannot fail the whole update.
func (e *engine) applyGrants(ctx context.Context, userID, tenantID, grantedBy snowflake.ID, grants map[string]domain.ModuleGrant) error {
	for module, grant := range grants {
		if !domain.KnownModule(module) {
			continue
		}
		level := grant.Level
		if !level.Valid() {
			continue
		}
		overrides := datatypes.JSONMap{}
		for page, l := range grant.PageOverrides {
			if l.Valid() {
				overrides[page] = string(l)
			}
		}
		perm := &domain.UserPermission{
			ID:            e.node.Generate(),
			UserID:        userID,
			TenantID:      tenantID,
			Module:        module,
			AccessLevel:   level,
			PageOverrides: overrides,
			GrantedBy:     grantedBy,
		}
		if err := e.perms.Upsert(ctx, perm); err != nil {
			return err
		}
	}
	return nil
}

// syncGroups rebuilds the casbin groupings from the permission rows:
// read maps to the module user role, full to the manager role, none to
// no role at all.
func (e *engine) syncGroups(ctx context.Context, userID, tenantID snowflake.ID) error {
	perms, err := e.perms.ListForUser(ctx, userID, tenantID)
	if err != nil {
		return err
	}
	var roles []string
	for _, perm := range perms {
		switch perm.AccessLevel {
		case domain.AccessRead:
			roles = append(roles, authorization.UserRole(perm.Module))
		case domain.AccessFull:
			roles = append(roles, authorization.ManagerRole(perm.Module))
		}
	}
	return e.authz.SetGroups(ctx, userID, tenantID, roles)
}

func (e *engine) moduleInPlan(ctx context.Context, tenantID snowflake.ID, module string) (bool, error) {
	plan, err := e.eval.ActivePlan(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if len(plan.Modules) == 0 {
		return true, nil
	}
	var modules []string
	if err := json.Unmarshal(plan.Modules, &modules); err != nil {
		return false, err
	}
	if len(modules) == 0 {
		return true, nil
	}
	for _, m := range modules {
		if m == module {
			return true, nil
		}
	}
	return false, nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
