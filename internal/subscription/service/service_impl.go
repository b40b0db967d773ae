package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/internal/store"
	"github.com/comptoir-labs/comptoir/internal/subscription/domain"
	"go.uber.org/zap"
)

type service struct {
	repo    domain.Repository
	counter store.Counter
	log     *zap.Logger
	now     func() time.Time
}

func New(repo domain.Repository, counter store.Counter, log *zap.Logger) domain.Evaluator {
	return &service{
		repo:    repo,
		counter: counter,
		log:     log.Named("subscription.service"),
		now:     time.Now,
	}
}

// Check walks the gate in order: subscription state first, then the plan
// limit for the requested resource. Limit 0 means unlimited and skips the
// count query entirely.
func (s *service) Check(ctx context.Context, companyID snowflake.ID, tenantID snowflake.ID, resource domain.Resource) error {
	sub, plan, err := s.activeSubscription(ctx, tenantID)
	if err != nil {
		return err
	}
	_ = sub

	var limit int64
	switch resource {
	case domain.ResourceProducts:
		limit = plan.MaxProducts
	case domain.ResourceUsers:
		limit = plan.MaxUsers
	case domain.ResourceOrders:
		limit = plan.MaxOrdersPerYear
	default:
		return nil
	}
	if limit == 0 {
		return nil
	}

	current, err := s.count(ctx, companyID, resource)
	if err != nil {
		return err
	}
	if current >= limit {
		s.log.Info("quota denied",
			zap.Int64("tenant_id", int64(tenantID)),
			zap.String("resource", string(resource)),
			zap.Int64("current", current),
			zap.Int64("max", limit),
			zap.String("plan", plan.Code),
		)
		return &domain.QuotaError{
			Resource: resource,
			Current:  current,
			Max:      limit,
			Plan:     plan.Code,
		}
	}
	return nil
}

func (s *service) ActivePlan(ctx context.Context, tenantID snowflake.ID) (*domain.Plan, error) {
	_, plan, err := s.activeSubscription(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *service) activeSubscription(ctx context.Context, tenantID snowflake.ID) (*domain.Subscription, *domain.Plan, error) {
	sub, err := s.repo.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		if err == domain.ErrSubscriptionNotFound {
			return nil, nil, domain.ErrSubscriptionInactive
		}
		return nil, nil, err
	}
	if !sub.State.IsOperational() {
		return nil, nil, domain.ErrSubscriptionInactive
	}
	if sub.EndDate != nil && sub.EndDate.Before(s.now().UTC()) {
		return nil, nil, domain.ErrSubscriptionInactive
	}
	plan, err := s.repo.FindPlanByID(ctx, sub.PlanID)
	if err != nil {
		return nil, nil, err
	}
	return sub, plan, nil
}

func (s *service) count(ctx context.Context, companyID snowflake.ID, resource domain.Resource) (int64, error) {
	switch resource {
	case domain.ResourceProducts:
		return s.counter.CountProducts(ctx, companyID)
	case domain.ResourceUsers:
		return s.counter.CountActiveUsers(ctx, companyID)
	case domain.ResourceOrders:
		now := s.now().UTC()
		yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return s.counter.CountOrdersBetween(ctx, companyID, yearStart, now)
	}
	return 0, nil
}
