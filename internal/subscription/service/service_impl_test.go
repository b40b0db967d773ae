package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/comptoir-labs/comptoir/internal/identity/domain"
	"github.com/comptoir-labs/comptoir/internal/store"
	"github.com/comptoir-labs/comptoir/internal/subscription/domain"
	"github.com/comptoir-labs/comptoir/internal/subscription/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	repo    domain.Repository
	eval    domain.Evaluator
	svc     *service
	company snowflake.ID
	tenant  snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Plan{},
		&domain.Subscription{},
		&identitydomain.User{},
		&store.Product{},
		&store.Order{},
	))

	repo := repository.New(db)
	counter, _ := store.New(db)
	eval := New(repo, counter, zaptest.NewLogger(t))
	return &fixture{
		db:      db,
		repo:    repo,
		eval:    eval,
		svc:     eval.(*service),
		company: snowflake.ID(100),
		tenant:  snowflake.ID(200),
	}
}

func (f *fixture) seedPlan(t *testing.T, code string, products, users, orders int64) *domain.Plan {
	t.Helper()
	plan := &domain.Plan{
		ID:               snowflake.ID(time.Now().UnixNano()),
		Code:             code,
		Name:             code,
		MaxProducts:      products,
		MaxUsers:         users,
		MaxOrdersPerYear: orders,
	}
	require.NoError(t, f.repo.CreatePlan(context.Background(), plan))
	return plan
}

func (f *fixture) seedSubscription(t *testing.T, planID snowflake.ID, state domain.State, end *time.Time) {
	t.Helper()
	require.NoError(t, f.repo.CreateSubscription(context.Background(), &domain.Subscription{
		ID:       snowflake.ID(time.Now().UnixNano()),
		TenantID: f.tenant,
		PlanID:   planID,
		State:    state,
		EndDate:  end,
	}))
}

func TestCheckNoSubscription(t *testing.T) {
	f := newFixture(t)
	err := f.eval.Check(context.Background(), f.company, f.tenant, domain.ResourceProducts)
	assert.ErrorIs(t, err, domain.ErrSubscriptionInactive)
}

func TestCheckInactiveStates(t *testing.T) {
	for _, state := range []domain.State{domain.StateSuspended, domain.StateExpired} {
		t.Run(string(state), func(t *testing.T) {
			f := newFixture(t)
			plan := f.seedPlan(t, "starter", 10, 3, 100)
			f.seedSubscription(t, plan.ID, state, nil)
			err := f.eval.Check(context.Background(), f.company, f.tenant, domain.ResourceProducts)
			assert.ErrorIs(t, err, domain.ErrSubscriptionInactive)
		})
	}
}

func TestCheckEndDatePassed(t *testing.T) {
	f := newFixture(t)
	plan := f.seedPlan(t, "starter", 10, 3, 100)
	end := time.Now().Add(-time.Hour)
	f.seedSubscription(t, plan.ID, domain.StateActive, &end)
	err := f.eval.Check(context.Background(), f.company, f.tenant, domain.ResourceProducts)
	assert.ErrorIs(t, err, domain.ErrSubscriptionInactive)
}

func TestCheckProductsAtLimit(t *testing.T) {
	f := newFixture(t)
	plan := f.seedPlan(t, "starter", 2, 0, 0)
	f.seedSubscription(t, plan.ID, domain.StateActive, nil)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.db.Create(&store.Product{
			ID:        snowflake.ID(1000 + i),
			CompanyID: f.company,
			IsActive:  true,
		}).Error)
	}

	err := f.eval.Check(context.Background(), f.company, f.tenant, domain.ResourceProducts)
	var qe *domain.QuotaError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, domain.ResourceProducts, qe.Resource)
	assert.Equal(t, int64(2), qe.Current)
	assert.Equal(t, int64(2), qe.Max)
	assert.Equal(t, "starter", qe.Plan)
}

func TestCheckInactiveProductsDoNotCount(t *testing.T) {
	f := newFixture(t)
	plan := f.seedPlan(t, "starter", 2, 0, 0)
	f.seedSubscription(t, plan.ID, domain.StateActive, nil)

	require.NoError(t, f.db.Create(&store.Product{ID: 1, CompanyID: f.company, IsActive: true}).Error)
	require.NoError(t, f.db.Create(&store.Product{ID: 2, CompanyID: f.company, IsActive: false}).Error)

	assert.NoError(t, f.eval.Check(context.Background(), f.company, f.tenant, domain.ResourceProducts))
}

func TestCheckZeroMeansUnlimited(t *testing.T) {
	f := newFixture(t)
	plan := f.seedPlan(t, "premium", 0, 0, 0)
	f.seedSubscription(t, plan.ID, domain.StateActive, nil)

	for i := 0; i < 50; i++ {
		require.NoError(t, f.db.Create(&store.Product{
			ID:        snowflake.ID(2000 + i),
			CompanyID: f.company,
			IsActive:  true,
		}).Error)
	}
	assert.NoError(t, f.eval.Check(context.Background(), f.company, f.tenant, domain.ResourceProducts))
}

func TestCheckUsersExcludesSharedAndInactive(t *testing.T) {
	f := newFixture(t)
	plan := f.seedPlan(t, "starter", 0, 2, 0)
	f.seedSubscription(t, plan.ID, domain.StateActive, nil)

	users := []identitydomain.User{
		{ID: 1, Login: "a@x.test", CompanyID: f.company, IsActive: true},
		{ID: 2, Login: "b@x.test", CompanyID: f.company, IsActive: false},
		{ID: 3, Login: "bot@x.test", CompanyID: f.company, IsActive: true, IsShared: true},
	}
	for i := range users {
		require.NoError(t, f.db.Create(&users[i]).Error)
	}

	// only one countable user, limit 2
	assert.NoError(t, f.eval.Check(context.Background(), f.company, f.tenant, domain.ResourceUsers))

	require.NoError(t, f.db.Create(&identitydomain.User{
		ID: 4, Login: "c@x.test", CompanyID: f.company, IsActive: true,
	}).Error)
	err := f.eval.Check(context.Background(), f.company, f.tenant, domain.ResourceUsers)
	var qe *domain.QuotaError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, int64(2), qe.Current)
}

func TestCheckOrdersCalendarYearWindow(t *testing.T) {
	f := newFixture(t)
	plan := f.seedPlan(t, "starter", 0, 0, 1)
	f.seedSubscription(t, plan.ID, domain.StateActive, nil)

	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	// last year's order must not count
	require.NoError(t, f.db.Create(&store.Order{
		ID: 1, CompanyID: f.company, OrderDate: time.Date(2025, time.December, 31, 23, 0, 0, 0, time.UTC),
	}).Error)
	assert.NoError(t, f.eval.Check(context.Background(), f.company, f.tenant, domain.ResourceOrders))

	require.NoError(t, f.db.Create(&store.Order{
		ID: 2, CompanyID: f.company, OrderDate: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	}).Error)
	err := f.eval.Check(context.Background(), f.company, f.tenant, domain.ResourceOrders)
	var qe *domain.QuotaError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, int64(1), qe.Current)
	assert.Equal(t, int64(1), qe.Max)
}

func TestCheckScopedByCompany(t *testing.T) {
	f := newFixture(t)
	plan := f.seedPlan(t, "starter", 1, 0, 0)
	f.seedSubscription(t, plan.ID, domain.StateActive, nil)

	other := snowflake.ID(999)
	require.NoError(t, f.db.Create(&store.Product{ID: 1, CompanyID: other, IsActive: true}).Error)

	assert.NoError(t, f.eval.Check(context.Background(), f.company, f.tenant, domain.ResourceProducts))
}

func TestActivePlan(t *testing.T) {
	f := newFixture(t)
	plan := f.seedPlan(t, "standard", 500, 10, 5000)
	f.seedSubscription(t, plan.ID, domain.StateTrial, nil)

	got, err := f.eval.ActivePlan(context.Background(), f.tenant)
	require.NoError(t, err)
	assert.Equal(t, "standard", got.Code)
	assert.Equal(t, int64(500), got.MaxProducts)
}
