package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/internal/authflow/password"
	identitydomain "github.com/comptoir-labs/comptoir/internal/identity/domain"
	identityrepo "github.com/comptoir-labs/comptoir/internal/identity/repository"
	subsdomain "github.com/comptoir-labs/comptoir/internal/subscription/domain"
	subsrepo "github.com/comptoir-labs/comptoir/internal/subscription/repository"
	"github.com/comptoir-labs/comptoir/internal/tenant/domain"
	"github.com/comptoir-labs/comptoir/internal/tenant/repository"
	"github.com/comptoir-labs/comptoir/pkg/tenantctx"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Tenant{},
		&identitydomain.User{},
		&subsdomain.Plan{},
		&subsdomain.Subscription{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	users, _, _ := identityrepo.New(db)
	subs := subsrepo.New(db)
	require.NoError(t, subs.CreatePlan(context.Background(), &subsdomain.Plan{
		ID: node.Generate(), Code: "starter", Name: "Starter", MaxProducts: 500, MaxUsers: 3,
	}))

	return New(repository.New(db), users, subs, node, zaptest.NewLogger(t)), db
}

func TestCreateOnboardsTenant(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	tn, err := svc.Create(ctx, domain.CreateInput{
		Name:          "Maison Verte",
		AdminEmail:    "Owner@MaisonVerte.test",
		AdminPassword: "s3cret-s3cret",
	})
	require.NoError(t, err)
	assert.Equal(t, "maison-verte.comptoir.shop", tn.Domain)
	assert.Equal(t, "admin.maison-verte.comptoir.shop", tn.BackofficeDomain)
	assert.NotZero(t, tn.CompanyID)

	var admin identitydomain.User
	require.NoError(t, db.Where("company_id = ?", tn.CompanyID).First(&admin).Error)
	assert.Equal(t, "owner@maisonverte.test", admin.Login)
	require.NotNil(t, admin.PasswordHash)
	rehash, err := password.Verify("s3cret-s3cret", *admin.PasswordHash)
	require.NoError(t, err)
	assert.False(t, rehash)

	var sub subsdomain.Subscription
	require.NoError(t, db.Where("tenant_id = ?", tn.ID).First(&sub).Error)
	assert.Equal(t, subsdomain.StateTrial, sub.State)
	require.NotNil(t, sub.EndDate)
	assert.WithinDuration(t, time.Now().Add(14*24*time.Hour), *sub.EndDate, time.Minute)
}

func TestCreateUnknownPlan(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Create(context.Background(), domain.CreateInput{
		Name: "X", AdminEmail: "a@x.test", AdminPassword: "pw", PlanCode: "platinum",
	})
	assert.ErrorIs(t, err, subsdomain.ErrPlanNotFound)
}

func TestCreateDuplicateDomain(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, domain.CreateInput{
		Name: "Shop", Domain: "shop.test", AdminEmail: "a@shop.test", AdminPassword: "pw12345678",
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateInput{
		Name: "Shop Two", Domain: "shop.test", AdminEmail: "b@shop.test", AdminPassword: "pw12345678",
	})
	assert.ErrorIs(t, err, domain.ErrTenantExists)
}

func TestResolveByDomain(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, domain.CreateInput{
		Name: "Shop", Domain: "shop.test", AdminEmail: "a@shop.test", AdminPassword: "pw12345678",
	})
	require.NoError(t, err)

	for _, host := range []string{"shop.test", "SHOP.test", "shop.test:8443", "admin.shop.test"} {
		got, err := svc.ResolveByDomain(ctx, host)
		require.NoError(t, err, host)
		assert.Equal(t, created.ID, got.ID, host)
	}

	_, err = svc.ResolveByDomain(ctx, "other.test")
	assert.ErrorIs(t, err, domain.ErrTenantUnknown)
	_, err = svc.ResolveByDomain(ctx, "")
	assert.ErrorIs(t, err, domain.ErrTenantUnknown)
}

func TestAuthorize(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	target := &domain.Tenant{ID: 1, Domain: "shop.test", CompanyID: 42}

	home := tenantctx.Principal{UserID: 7, Login: "a@shop.test", CompanyID: 42}
	assert.NoError(t, svc.Authorize(ctx, home, target, false))

	foreign := tenantctx.Principal{UserID: 8, Login: "b@other.test", CompanyID: 43}
	assert.ErrorIs(t, svc.Authorize(ctx, foreign, target, false), domain.ErrCrossTenantAccess)

	// superadmin bypasses the company check
	assert.NoError(t, svc.Authorize(ctx, foreign, target, true))
}
