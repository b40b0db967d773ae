// Package authorization mirrors per-user module access into casbin
// grouping policies, one domain per tenant. The permission tables stay the
// source of truth; casbin answers the hot-path question "may user U do
// action A on module M in tenant T".
package authorization

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

// Module objects. One casbin object per platform module.
const (
	ObjectStore     = "store"
	ObjectCatalog   = "catalog"
	ObjectOrders    = "orders"
	ObjectInvoicing = "invoicing"
	ObjectStock     = "stock"
	ObjectAnalytics = "analytics"
	ObjectMarketing = "marketing"
	ObjectSupport   = "support"
	ObjectSettings  = "settings"
	ObjectPOS       = "pos"
)

// Modules lists every module object in catalog order.
var Modules = []string{
	ObjectStore, ObjectCatalog, ObjectOrders, ObjectInvoicing, ObjectStock,
	ObjectAnalytics, ObjectMarketing, ObjectSupport, ObjectSettings, ObjectPOS,
}

const (
	ActionRead  = "read"
	ActionWrite = "write"
)

const (
	roleSuperadmin = "role:superadmin"
	anyDomain      = "*"
)

var ErrForbidden = errors.New("forbidden")

// Service is the grouping-policy surface the permission engine drives.
type Service interface {
	Authorize(ctx context.Context, userID, tenantID snowflake.ID, object, action string) error
	// SetGroups replaces the user's role memberships inside one tenant
	// domain with exactly the given roles.
	SetGroups(ctx context.Context, userID, tenantID snowflake.ID, roles []string) error
	GroupsFor(ctx context.Context, userID, tenantID snowflake.ID) ([]string, error)
	GrantSuperadmin(ctx context.Context, userID snowflake.ID) error
	RevokeSuperadmin(ctx context.Context, userID snowflake.ID) error
	IsSuperadmin(ctx context.Context, userID snowflake.ID) (bool, error)
}

// UserRole and ManagerRole name the two per-module roles.
func UserRole(module string) string    { return fmt.Sprintf("role:%s_user", module) }
func ManagerRole(module string) string { return fmt.Sprintf("role:%s_manager", module) }

func subject(userID snowflake.ID) string { return fmt.Sprintf("user:%s", userID) }
func tenantDom(id snowflake.ID) string   { return fmt.Sprintf("tenant:%s", id) }

type serviceImpl struct {
	enforcer *casbin.SyncedEnforcer
	log      *zap.Logger
}

// NewEnforcer builds the synced enforcer on the gorm adapter and seeds the
// baseline role policies. Policies are idempotent; AddPolicy on an
// existing rule is a no-op.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{roleSuperadmin, anyDomain, "*", "*"},
	}
	for _, module := range Modules {
		policies = append(policies,
			[]string{UserRole(module), anyDomain, module, ActionRead},
			[]string{ManagerRole(module), anyDomain, module, ActionRead},
			[]string{ManagerRole(module), anyDomain, module, ActionWrite},
		)
	}
	for _, p := range policies {
		if _, err := enforcer.AddPolicy(p[0], p[1], p[2], p[3]); err != nil {
			return err
		}
	}
	return nil
}

func NewService(enforcer *casbin.SyncedEnforcer, log *zap.Logger) Service {
	return &serviceImpl{
		enforcer: enforcer,
		log:      log.Named("authorization.service"),
	}
}

func (s *serviceImpl) Authorize(ctx context.Context, userID, tenantID snowflake.ID, object, action string) error {
	allowed, err := s.enforcer.Enforce(subject(userID), tenantDom(tenantID), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

func (s *serviceImpl) SetGroups(ctx context.Context, userID, tenantID snowflake.ID, roles []string) error {
	sub := subject(userID)
	dom := tenantDom(tenantID)

	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, sub, "", dom)
	if err != nil {
		return err
	}
	want := make(map[string]bool, len(roles))
	for _, role := range roles {
		want[role] = true
	}
	for _, rule := range existing {
		if len(rule) < 3 {
			continue
		}
		if want[rule[1]] {
			delete(want, rule[1])
			continue
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(rule[0], rule[1], rule[2]); err != nil {
			return err
		}
	}
	for role := range want {
		if _, err := s.enforcer.AddGroupingPolicy(sub, role, dom); err != nil {
			return err
		}
	}
	s.log.Debug("groups synced",
		zap.Int64("user_id", int64(userID)),
		zap.Int64("tenant_id", int64(tenantID)),
		zap.Strings("roles", roles),
	)
	return nil
}

func (s *serviceImpl) GroupsFor(ctx context.Context, userID, tenantID snowflake.ID) ([]string, error) {
	rules, err := s.enforcer.GetFilteredGroupingPolicy(0, subject(userID), "", tenantDom(tenantID))
	if err != nil {
		return nil, err
	}
	roles := make([]string, 0, len(rules))
	for _, rule := range rules {
		if len(rule) >= 2 {
			roles = append(roles, rule[1])
		}
	}
	return roles, nil
}

func (s *serviceImpl) GrantSuperadmin(ctx context.Context, userID snowflake.ID) error {
	_, err := s.enforcer.AddGroupingPolicy(subject(userID), roleSuperadmin, anyDomain)
	return err
}

func (s *serviceImpl) RevokeSuperadmin(ctx context.Context, userID snowflake.ID) error {
	_, err := s.enforcer.RemoveGroupingPolicy(subject(userID), roleSuperadmin, anyDomain)
	return err
}

func (s *serviceImpl) IsSuperadmin(ctx context.Context, userID snowflake.ID) (bool, error) {
	return s.enforcer.HasGroupingPolicy(subject(userID), roleSuperadmin, anyDomain)
}
