package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/comptoir-labs/comptoir/internal/authflow/password"
	identitydomain "github.com/comptoir-labs/comptoir/internal/identity/domain"
	subsdomain "github.com/comptoir-labs/comptoir/internal/subscription/domain"
	"github.com/comptoir-labs/comptoir/internal/tenant/domain"
	"github.com/comptoir-labs/comptoir/pkg/tenantctx"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

const (
	defaultPlanCode = "starter"
	trialPeriod     = 14 * 24 * time.Hour
	platformSuffix  = ".comptoir.shop"
)

type service struct {
	repo  domain.Repository
	users identitydomain.Repository
	subs  subsdomain.Repository
	node  *snowflake.Node
	log   *zap.Logger
	now   func() time.Time
}

func New(
	repo domain.Repository,
	users identitydomain.Repository,
	subs subsdomain.Repository,
	node *snowflake.Node,
	log *zap.Logger,
) domain.Service {
	return &service{
		repo:  repo,
		users: users,
		subs:  subs,
		node:  node,
		log:   log.Named("tenant.service"),
		now:   time.Now,
	}
}

func (s *service) ResolveByDomain(ctx context.Context, host string) (*domain.Tenant, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return nil, domain.ErrTenantUnknown
	}
	// strip an explicit port, hosts are stored bare
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return s.repo.FindByDomain(ctx, host)
}

func (s *service) ResolveByID(ctx context.Context, id snowflake.ID) (*domain.Tenant, error) {
	return s.repo.FindByID(ctx, id)
}

// Authorize is the cross-tenant gate. A refusal is logged at ERROR with
// enough detail to investigate: who tried, from which home company, into
// which tenant.
func (s *service) Authorize(ctx context.Context, p tenantctx.Principal, target *domain.Tenant, superadmin bool) error {
	if superadmin {
		return nil
	}
	if p.CompanyID == target.CompanyID {
		return nil
	}
	s.log.Error("cross tenant access refused",
		zap.Int64("user_id", int64(p.UserID)),
		zap.String("login", p.Login),
		zap.Int64("home_company_id", int64(p.CompanyID)),
		zap.Int64("target_tenant_id", int64(target.ID)),
		zap.String("target_domain", target.Domain),
	)
	return domain.ErrCrossTenantAccess
}

// Create onboards a tenant: the tenant row, its first admin user and a
// trial subscription on the requested plan.
func (s *service) Create(ctx context.Context, in domain.CreateInput) (*domain.Tenant, error) {
	planCode := in.PlanCode
	if planCode == "" {
		planCode = defaultPlanCode
	}
	plan, err := s.subs.FindPlanByCode(ctx, planCode)
	if err != nil {
		return nil, err
	}

	host := strings.ToLower(strings.TrimSpace(in.Domain))
	if host == "" {
		host = slug.Make(in.Name) + platformSuffix
	}

	t := &domain.Tenant{
		ID:               s.node.Generate(),
		Name:             in.Name,
		Domain:           host,
		BackofficeDomain: "admin." + host,
		CompanyID:        s.node.Generate(),
		AdminEmail:       in.AdminEmail,
		IsActive:         true,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	hash, err := password.Hash(in.AdminPassword)
	if err != nil {
		return nil, err
	}
	admin := &identitydomain.User{
		ID:           s.node.Generate(),
		Login:        strings.ToLower(in.AdminEmail),
		DisplayName:  in.Name + " Admin",
		PasswordHash: &hash,
		CompanyID:    t.CompanyID,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, err
	}

	end := s.now().UTC().Add(trialPeriod)
	sub := &subsdomain.Subscription{
		ID:       s.node.Generate(),
		TenantID: t.ID,
		PlanID:   plan.ID,
		State:    subsdomain.StateTrial,
		EndDate:  &end,
	}
	if err := s.subs.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	s.log.Info("tenant onboarded",
		zap.Int64("tenant_id", int64(t.ID)),
		zap.String("domain", t.Domain),
		zap.String("plan", plan.Code),
	)
	return t, nil
}

func (s *service) List(ctx context.Context) ([]domain.Tenant, error) {
	return s.repo.List(ctx)
}
