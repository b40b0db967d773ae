package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/comptoir-labs/comptoir/internal/authflow/domain"
	"github.com/comptoir-labs/comptoir/internal/authorization"
	"github.com/comptoir-labs/comptoir/internal/ratelimit"
	tenantdomain "github.com/comptoir-labs/comptoir/internal/tenant/domain"
	"github.com/comptoir-labs/comptoir/internal/token"
	"github.com/comptoir-labs/comptoir/pkg/tenantctx"
	"github.com/gin-gonic/gin"
)

const (
	HeaderTenantDomain = "X-Tenant-Domain"

	keyPrincipal = "principal"
	keyTenant    = "tenant"
)

// CORS answers preflights and stamps the usual headers. The storefront
// and backoffice run on per-tenant domains, so the origin is echoed.
func (s *Server) CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		}
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Tenant-Domain, X-Request-Id")
		h.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// AuthRequired decodes the bearer access token and loads the principal.
// The user row is re-read so deactivation takes effect before token expiry.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := token.ExtractBearer(c.GetHeader("Authorization"))
		if !ok {
			s.respondError(c, authdomain.ErrUnauthenticated)
			return
		}
		claims, err := s.codec.Decode(raw, token.TypeAccess)
		if err != nil {
			s.respondError(c, err)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			s.respondError(c, authdomain.ErrUnauthenticated)
			return
		}
		user, err := s.users.FindByID(c.Request.Context(), userID)
		if err != nil || !user.IsActive {
			s.respondError(c, authdomain.ErrUnauthenticated)
			return
		}

		p := tenantctx.Principal{
			UserID:    user.ID,
			Login:     user.Login,
			CompanyID: user.CompanyID,
		}
		if claims.TenantID != "" {
			if id, perr := snowflake.ParseString(claims.TenantID); perr == nil {
				p.TenantID = id
			}
		}

		c.Set(keyPrincipal, p)
		ctx := tenantctx.WithPrincipal(c.Request.Context(), p)
		if claims.ID != "" {
			ctx = tenantctx.WithTokenID(ctx, claims.ID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// TenantContext resolves the target tenant from the X-Tenant-Domain
// header, falling back to the token's tenant claim, and enforces the
// cross-tenant gate.
func (s *Server) TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principalFrom(c)
		if !ok {
			s.respondError(c, authdomain.ErrUnauthenticated)
			return
		}

		var (
			tenant *tenantdomain.Tenant
			err    error
		)
		if host := strings.TrimSpace(c.GetHeader(HeaderTenantDomain)); host != "" {
			tenant, err = s.tenants.ResolveByDomain(c.Request.Context(), host)
		} else if p.TenantID != 0 {
			tenant, err = s.tenants.ResolveByID(c.Request.Context(), p.TenantID)
		} else {
			err = tenantdomain.ErrTenantUnknown
		}
		if err != nil {
			s.respondError(c, err)
			return
		}

		super, err := s.authz.IsSuperadmin(c.Request.Context(), p.UserID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		if err := s.tenants.Authorize(c.Request.Context(), p, tenant, super); err != nil {
			s.respondError(c, err)
			return
		}

		p.TenantID = tenant.ID
		c.Set(keyPrincipal, p)
		c.Set(keyTenant, tenant)
		ctx := tenantctx.WithPrincipal(c.Request.Context(), p)
		ctx = tenantctx.WithTenant(ctx, tenantctx.Tenant{
			ID:        tenant.ID,
			Domain:    tenant.Domain,
			CompanyID: tenant.CompanyID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// PublicTenant resolves the tenant for unauthenticated storefront routes.
func (s *Server) PublicTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		host := strings.TrimSpace(c.GetHeader(HeaderTenantDomain))
		tenant, err := s.tenants.ResolveByDomain(c.Request.Context(), host)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.Set(keyTenant, tenant)
		c.Next()
	}
}

// RequireSuperadmin gates the platform surface.
func (s *Server) RequireSuperadmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principalFrom(c)
		if !ok {
			s.respondError(c, authdomain.ErrUnauthenticated)
			return
		}
		super, err := s.authz.IsSuperadmin(c.Request.Context(), p.UserID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		if !super {
			s.respondError(c, authorization.ErrForbidden)
			return
		}
		c.Next()
	}
}

// APIRateLimit bounds authenticated traffic per user.
func (s *Server) APIRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principalFrom(c)
		if !ok {
			s.respondError(c, authdomain.ErrUnauthenticated)
			return
		}
		decision, _ := s.limiter.Admit(c.Request.Context(), ratelimit.ScopeAPI, p.UserID.String())
		if !decision.Allowed {
			s.respondError(c, &authdomain.RateLimitedError{
				Scope:      ratelimit.ScopeAPI.Name,
				RetryAfter: decision.RetryAfter,
			})
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) (tenantctx.Principal, bool) {
	v, ok := c.Get(keyPrincipal)
	if !ok {
		return tenantctx.Principal{}, false
	}
	p, ok := v.(tenantctx.Principal)
	return p, ok
}

func tenantFrom(c *gin.Context) (*tenantdomain.Tenant, bool) {
	v, ok := c.Get(keyTenant)
	if !ok {
		return nil, false
	}
	t, ok := v.(*tenantdomain.Tenant)
	return t, ok
}
