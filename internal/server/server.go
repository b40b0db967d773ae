package server

import (
	"context"
	"net/http"
	"time"

	aidomain "github.com/comptoir-labs/comptoir/internal/aiprovider/domain"
	authdomain "github.com/comptoir-labs/comptoir/internal/authflow/domain"
	"github.com/comptoir-labs/comptoir/internal/authorization"
	"github.com/comptoir-labs/comptoir/internal/config"
	identitydomain "github.com/comptoir-labs/comptoir/internal/identity/domain"
	"github.com/comptoir-labs/comptoir/internal/observability"
	permdomain "github.com/comptoir-labs/comptoir/internal/permission/domain"
	"github.com/comptoir-labs/comptoir/internal/ratelimit"
	"github.com/comptoir-labs/comptoir/internal/store"
	tenantdomain "github.com/comptoir-labs/comptoir/internal/tenant/domain"
	"github.com/comptoir-labs/comptoir/internal/token"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Metrics  *observability.Metrics
	Codec    *token.Codec
	Limiter  *ratelimit.Limiter
	Users    identitydomain.Repository
	Tenants  tenantdomain.Service
	Auth     authdomain.Service
	Engine   permdomain.Engine
	Registry aidomain.Registry
	Authz    authorization.Service
	Views    store.ViewRecorder
}

type Server struct {
	cfg      config.Config
	log      *zap.Logger
	metrics  *observability.Metrics
	codec    *token.Codec
	limiter  *ratelimit.Limiter
	users    identitydomain.Repository
	tenants  tenantdomain.Service
	auth     authdomain.Service
	engine   permdomain.Engine
	registry aidomain.Registry
	authz    authorization.Service
	views    store.ViewRecorder
}

func New(p Params) *Server {
	return &Server{
		cfg:      p.Cfg,
		log:      p.Log.Named("server"),
		metrics:  p.Metrics,
		codec:    p.Codec,
		limiter:  p.Limiter,
		users:    p.Users,
		tenants:  p.Tenants,
		auth:     p.Auth,
		engine:   p.Engine,
		registry: p.Registry,
		authz:    p.Authz,
		views:    p.Views,
	}
}

// Router wires every route. Privileged groups run bearer auth, tenant
// resolution and the api rate limit in that order.
func (s *Server) Router() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(s.log, s.metrics))
	r.Use(s.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/login", s.handleLogin)
		auth.POST("/refresh", s.handleRefresh)
		auth.POST("/logout", s.handleLogout)
		auth.POST("/2fa/verify", s.handleVerify2FA)

		authed := auth.Group("", s.AuthRequired())
		authed.GET("/me", s.handleMe)
		authed.POST("/2fa/setup", s.handleSetup2FA)
		authed.POST("/2fa/confirm", s.handleConfirm2FA)
		authed.POST("/2fa/disable", s.handleDisable2FA)
		authed.GET("/2fa/status", s.handleTwoFAStatus)
		authed.POST("/2fa/backup-codes/regenerate", s.handleRegenerateBackupCodes)
		authed.GET("/my-permissions", s.TenantContext(), s.handleMyPermissions)
	}

	team := api.Group("/tenant/team", s.AuthRequired(), s.TenantContext(), s.APIRateLimit())
	{
		team.GET("", s.handleListTeam)
		team.POST("/invite", s.handleInvite)
		team.GET("/module-pages", s.handleModulePages)
		team.GET("/:user_id/permissions", s.handleGetPermissions)
		team.POST("/:user_id/permissions", s.handleSetPermissions)
		team.DELETE("/:user_id", s.handleRemoveMember)
	}

	ai := api.Group("/super-admin/ai", s.AuthRequired(), s.RequireSuperadmin(), s.APIRateLimit())
	{
		ai.GET("/providers", s.handleListProviders)
		ai.POST("/providers", s.handleCreateProvider)
		ai.GET("/providers/:id", s.handleGetProvider)
		ai.PUT("/providers/:id", s.handleUpdateProvider)
		ai.DELETE("/providers/:id", s.handleDeleteProvider)
		ai.POST("/providers/:id/test", s.handleTestProvider)
		ai.GET("/metrics", s.handleProviderMetrics)
		ai.POST("/seed-defaults", s.handleSeedProviders)
	}

	api.POST("/products/:id/view", s.PublicTenant(), s.handleProductView)

	return r
}

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(Run),
)

// Run starts the HTTP listener under the fx lifecycle.
func Run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Info("http server starting", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
