package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Resource is a quota axis.
type Resource string

const (
	ResourceProducts Resource = "products"
	ResourceUsers    Resource = "users"
	ResourceOrders   Resource = "orders_this_calendar_year"
)

var (
	ErrSubscriptionInactive = errors.New("subscription inactive")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// QuotaError is the structured denial the client turns into an upgrade
// prompt.
type QuotaError struct {
	Resource Resource
	Current  int64
	Max      int64
	Plan     string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d/%d on plan %s", e.Resource, e.Current, e.Max, e.Plan)
}

// Evaluator decides whether a tenant may create another quota-bearing
// resource. A nil return admits; *QuotaError and ErrSubscriptionInactive
// deny.
type Evaluator interface {
	Check(ctx context.Context, companyID snowflake.ID, tenantID snowflake.ID, resource Resource) error
	// ActivePlan returns the plan backing the tenant's subscription, for
	// gating module access against the plan's included modules.
	ActivePlan(ctx context.Context, tenantID snowflake.ID) (*Plan, error)
}

type Repository interface {
	CreatePlan(ctx context.Context, plan *Plan) error
	FindPlanByID(ctx context.Context, id snowflake.ID) (*Plan, error)
	FindPlanByCode(ctx context.Context, code string) (*Plan, error)
	ListPlans(ctx context.Context) ([]Plan, error)
	CreateSubscription(ctx context.Context, sub *Subscription) error
	FindActiveByTenant(ctx context.Context, tenantID snowflake.ID) (*Subscription, error)
	UpdateState(ctx context.Context, id snowflake.ID, state State) error
}
