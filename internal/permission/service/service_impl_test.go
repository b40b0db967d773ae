package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/internal/authflow/password"
	"github.com/comptoir-labs/comptoir/internal/authorization"
	identitydomain "github.com/comptoir-labs/comptoir/internal/identity/domain"
	identityrepo "github.com/comptoir-labs/comptoir/internal/identity/repository"
	"github.com/comptoir-labs/comptoir/internal/permission/domain"
	permrepo "github.com/comptoir-labs/comptoir/internal/permission/repository"
	"github.com/comptoir-labs/comptoir/internal/store"
	subsdomain "github.com/comptoir-labs/comptoir/internal/subscription/domain"
	subsrepo "github.com/comptoir-labs/comptoir/internal/subscription/repository"
	subsservice "github.com/comptoir-labs/comptoir/internal/subscription/service"
	tenantdomain "github.com/comptoir-labs/comptoir/internal/tenant/domain"
	"github.com/comptoir-labs/comptoir/pkg/tenantctx"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	engine domain.Engine
	authz  authorization.Service
	users  identitydomain.Repository
	tenant *tenantdomain.Tenant
	admin  tenantctx.Principal
	member tenantctx.Principal
	node   *snowflake.Node
}

func newFixture(t *testing.T, plan subsdomain.Plan) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&tenantdomain.Tenant{},
		&identitydomain.User{},
		&subsdomain.Plan{},
		&subsdomain.Subscription{},
		&domain.UserPermission{},
		&store.Product{},
		&store.Order{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	users, _, _ := identityrepo.New(db)
	subs := subsrepo.New(db)
	counter, _ := store.New(db)
	eval := subsservice.New(subs, counter, zaptest.NewLogger(t))

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	authz := authorization.NewService(enforcer, zaptest.NewLogger(t))

	if plan.ID == 0 {
		plan.ID = node.Generate()
	}
	if plan.Code == "" {
		plan.Code = "standard"
	}
	require.NoError(t, subs.CreatePlan(ctx, &plan))

	tenant := &tenantdomain.Tenant{
		ID:               node.Generate(),
		Name:             "Shop",
		Domain:           "shop.test",
		BackofficeDomain: "admin.shop.test",
		CompanyID:        node.Generate(),
		AdminEmail:       "owner@shop.test",
		IsActive:         true,
	}
	require.NoError(t, db.Create(tenant).Error)
	require.NoError(t, subs.CreateSubscription(ctx, &subsdomain.Subscription{
		ID: node.Generate(), TenantID: tenant.ID, PlanID: plan.ID, State: subsdomain.StateActive,
	}))

	adminUser := &identitydomain.User{
		ID: node.Generate(), Login: "owner@shop.test", CompanyID: tenant.CompanyID, IsActive: true,
	}
	require.NoError(t, users.Create(ctx, adminUser))
	memberUser := &identitydomain.User{
		ID: node.Generate(), Login: "clerk@shop.test", CompanyID: tenant.CompanyID, IsActive: true,
	}
	require.NoError(t, users.Create(ctx, memberUser))

	engine := New(permrepo.New(db), users, eval, authz, node, zaptest.NewLogger(t))
	return &fixture{
		engine: engine,
		authz:  authz,
		users:  users,
		tenant: tenant,
		admin: tenantctx.Principal{
			UserID: adminUser.ID, Login: adminUser.Login, CompanyID: tenant.CompanyID, TenantID: tenant.ID,
		},
		member: tenantctx.Principal{
			UserID: memberUser.ID, Login: memberUser.Login, CompanyID: tenant.CompanyID, TenantID: tenant.ID,
		},
		node: node,
	}
}

func unlimitedPlan() subsdomain.Plan {
	return subsdomain.Plan{Name: "Standard"}
}

func TestManagerAllowedEverywhere(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	ctx := context.Background()

	for _, def := range domain.Catalog {
		assert.NoError(t, f.engine.Check(ctx, f.admin, f.tenant, def.ID, "", domain.ActionWrite), def.ID)
	}
}

func TestManagerBoundByPlanModules(t *testing.T) {
	plan := unlimitedPlan()
	plan.Modules = datatypes.JSON(`["catalog","orders"]`)
	f := newFixture(t, plan)
	ctx := context.Background()

	assert.NoError(t, f.engine.Check(ctx, f.admin, f.tenant, "catalog", "", domain.ActionWrite))
	assert.ErrorIs(t, f.engine.Check(ctx, f.admin, f.tenant, "pos", "", domain.ActionRead), domain.ErrForbidden)
}

func TestMemberWithoutRowsDenied(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	err := f.engine.Check(context.Background(), f.member, f.tenant, "catalog", "", domain.ActionRead)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUnknownModuleDenied(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	err := f.engine.Check(context.Background(), f.admin, f.tenant, "warp-drive", "", domain.ActionRead)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAccessLevelsAndPageOverrides(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	ctx := context.Background()

	require.NoError(t, f.engine.SetPermissions(ctx, f.admin, f.tenant, f.member.UserID, map[string]domain.ModuleGrant{
		"catalog": {Level: domain.AccessRead, PageOverrides: map[string]domain.AccessLevel{
			"imports": domain.AccessFull,
		}},
		"orders": {Level: domain.AccessFull, PageOverrides: map[string]domain.AccessLevel{
			"returns": domain.AccessNone,
		}},
	}))

	// module level read: read ok, write denied
	assert.NoError(t, f.engine.Check(ctx, f.member, f.tenant, "catalog", "products", domain.ActionRead))
	assert.ErrorIs(t, f.engine.Check(ctx, f.member, f.tenant, "catalog", "products", domain.ActionWrite), domain.ErrForbidden)
	// page override lifts imports to full
	assert.NoError(t, f.engine.Check(ctx, f.member, f.tenant, "catalog", "imports", domain.ActionWrite))
	// module level full, override drops returns to none
	assert.NoError(t, f.engine.Check(ctx, f.member, f.tenant, "orders", "orders", domain.ActionWrite))
	assert.ErrorIs(t, f.engine.Check(ctx, f.member, f.tenant, "orders", "returns", domain.ActionRead), domain.ErrForbidden)
}

func TestGroupSyncFollowsRows(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	ctx := context.Background()

	require.NoError(t, f.engine.SetPermissions(ctx, f.admin, f.tenant, f.member.UserID, map[string]domain.ModuleGrant{
		"catalog": {Level: domain.AccessFull},
		"orders":  {Level: domain.AccessRead},
	}))
	roles, err := f.authz.GroupsFor(ctx, f.member.UserID, f.tenant.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		authorization.ManagerRole("catalog"),
		authorization.UserRole("orders"),
	}, roles)

	// downgrade reverts the mirrored groups
	require.NoError(t, f.engine.SetPermissions(ctx, f.admin, f.tenant, f.member.UserID, map[string]domain.ModuleGrant{
		"catalog": {Level: domain.AccessNone},
		"orders":  {Level: domain.AccessNone},
	}))
	roles, err = f.authz.GroupsFor(ctx, f.member.UserID, f.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestSetPermissionsIgnoresUnknownModules(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	ctx := context.Background()

	require.NoError(t, f.engine.SetPermissions(ctx, f.admin, f.tenant, f.member.UserID, map[string]domain.ModuleGrant{
		"catalog":    {Level: domain.AccessRead},
		"warp-drive": {Level: domain.AccessFull},
	}))
	perms, err := f.engine.PermissionsFor(ctx, f.member.UserID, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "catalog", perms[0].Module)
}

func TestSetPermissionsRejectsSelf(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	err := f.engine.SetPermissions(context.Background(), f.admin, f.tenant, f.admin.UserID, nil)
	assert.ErrorIs(t, err, domain.ErrSelfEdit)
}

func TestInvite(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	ctx := context.Background()

	res, err := f.engine.Invite(ctx, f.admin, f.tenant, domain.InviteInput{
		Email:       "New.Clerk@Shop.test",
		DisplayName: "New Clerk",
		Grants: map[string]domain.ModuleGrant{
			"orders": {Level: domain.AccessRead},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "new.clerk@shop.test", res.User.Login)
	assert.NotEmpty(t, res.TempPassword)

	rehash, err := password.Verify(res.TempPassword, *res.User.PasswordHash)
	require.NoError(t, err)
	assert.False(t, rehash)

	roles, err := f.authz.GroupsFor(ctx, res.User.ID, f.tenant.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{authorization.UserRole("orders")}, roles)
}

func TestInviteDuplicateEmail(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	_, err := f.engine.Invite(context.Background(), f.admin, f.tenant, domain.InviteInput{
		Email: "clerk@shop.test",
	})
	assert.ErrorIs(t, err, identitydomain.ErrUserExists)
}

func TestInviteUserQuota(t *testing.T) {
	plan := unlimitedPlan()
	plan.MaxUsers = 2 // admin + clerk already exist
	f := newFixture(t, plan)

	_, err := f.engine.Invite(context.Background(), f.admin, f.tenant, domain.InviteInput{
		Email: "third@shop.test",
	})
	var qe *subsdomain.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, subsdomain.ResourceUsers, qe.Resource)
	assert.Equal(t, int64(2), qe.Current)
}

func TestInviteRequiresManager(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	_, err := f.engine.Invite(context.Background(), f.member, f.tenant, domain.InviteInput{
		Email: "x@shop.test",
	})
	assert.ErrorIs(t, err, domain.ErrNotManager)
}

func TestRemove(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	ctx := context.Background()

	require.NoError(t, f.engine.SetPermissions(ctx, f.admin, f.tenant, f.member.UserID, map[string]domain.ModuleGrant{
		"catalog": {Level: domain.AccessFull},
	}))
	require.NoError(t, f.engine.Remove(ctx, f.admin, f.tenant, f.member.UserID))

	user, err := f.users.FindByID(ctx, f.member.UserID)
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	perms, err := f.engine.PermissionsFor(ctx, f.member.UserID, f.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)

	roles, err := f.authz.GroupsFor(ctx, f.member.UserID, f.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestRemoveSelf(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	err := f.engine.Remove(context.Background(), f.admin, f.tenant, f.admin.UserID)
	assert.ErrorIs(t, err, domain.ErrSelfEdit)
}

func TestRemoveForeignUser(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	ctx := context.Background()
	outsider := &identitydomain.User{
		ID: f.node.Generate(), Login: "out@other.test", CompanyID: f.node.Generate(), IsActive: true,
	}
	require.NoError(t, f.users.Create(ctx, outsider))

	err := f.engine.Remove(ctx, f.admin, f.tenant, outsider.ID)
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestListTeam(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	ctx := context.Background()

	members, err := f.engine.ListTeam(ctx, f.admin, f.tenant)
	require.NoError(t, err)
	require.Len(t, members, 2)

	_, err = f.engine.ListTeam(ctx, f.member, f.tenant)
	assert.ErrorIs(t, err, domain.ErrNotManager)
}

func TestSuperadminWithoutRowsIsManager(t *testing.T) {
	f := newFixture(t, unlimitedPlan())
	ctx := context.Background()

	super := &identitydomain.User{
		ID: f.node.Generate(), Login: "root@platform.test", CompanyID: f.node.Generate(), IsActive: true,
	}
	require.NoError(t, f.users.Create(ctx, super))
	require.NoError(t, f.authz.GrantSuperadmin(ctx, super.ID))

	p := tenantctx.Principal{UserID: super.ID, Login: super.Login, CompanyID: super.CompanyID}
	manager, err := f.engine.IsManager(ctx, p, f.tenant)
	require.NoError(t, err)
	assert.True(t, manager)
}
