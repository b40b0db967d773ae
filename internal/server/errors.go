package server

import (
	"errors"
	"net/http"
	"strings"

	aidomain "github.com/comptoir-labs/comptoir/internal/aiprovider/domain"
	authdomain "github.com/comptoir-labs/comptoir/internal/authflow/domain"
	"github.com/comptoir-labs/comptoir/internal/authorization"
	identitydomain "github.com/comptoir-labs/comptoir/internal/identity/domain"
	permdomain "github.com/comptoir-labs/comptoir/internal/permission/domain"
	subsdomain "github.com/comptoir-labs/comptoir/internal/subscription/domain"
	tenantdomain "github.com/comptoir-labs/comptoir/internal/tenant/domain"
	"github.com/comptoir-labs/comptoir/internal/token"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Error codes returned in the error_code field.
const (
	CodeUnauthenticated      = "UNAUTHENTICATED"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeInvalidCode          = "INVALID_CODE"
	CodeForbidden            = "FORBIDDEN"
	CodeCrossTenant          = "CROSS_TENANT"
	CodeSubscriptionInactive = "SUBSCRIPTION_INACTIVE"
	CodeRateLimited          = "RATE_LIMITED"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeNotFound             = "NOT_FOUND"
	CodeConflict             = "CONFLICT"
	CodeInternal             = "INTERNAL"
)

type errorBody struct {
	Success    bool       `json:"success"`
	Error      string     `json:"error"`
	ErrorCode  string     `json:"error_code"`
	Quota      *quotaBody `json:"quota,omitempty"`
	RetryAfter int64      `json:"retry_after,omitempty"`
}

type quotaBody struct {
	Current int64  `json:"current"`
	Max     int64  `json:"max"`
	Plan    string `json:"plan"`
}

// respondError is the single outer mapping from domain errors to HTTP.
// Client bodies never carry the precise failure reason for auth errors;
// the full cause stays in the server logs.
func (s *Server) respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var (
		rateLimited *authdomain.RateLimitedError
		quotaErr    *subsdomain.QuotaError
	)

	switch {
	case errors.As(err, &rateLimited):
		retry := int64(rateLimited.RetryAfter.Seconds())
		if retry < 1 {
			retry = 1
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
			Error: "Trop de requêtes", ErrorCode: CodeRateLimited, RetryAfter: retry,
		})

	case errors.As(err, &quotaErr):
		c.AbortWithStatusJSON(http.StatusForbidden, errorBody{
			Error:     "Limite du plan atteinte",
			ErrorCode: quotaCode(quotaErr.Resource),
			Quota:     &quotaBody{Current: quotaErr.Current, Max: quotaErr.Max, Plan: quotaErr.Plan},
		})

	case errors.Is(err, subsdomain.ErrSubscriptionInactive):
		c.AbortWithStatusJSON(http.StatusForbidden, errorBody{
			Error: "Abonnement inactif", ErrorCode: CodeSubscriptionInactive,
		})

	case errors.Is(err, authdomain.ErrInvalidCredentials):
		s.metrics.AuthFailure("credentials")
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
			Error: "Identifiants invalides", ErrorCode: CodeUnauthenticated,
		})

	case errors.Is(err, token.ErrTokenExpired):
		s.metrics.AuthFailure("token_expired")
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
			Error: "Session expirée", ErrorCode: CodeTokenExpired,
		})

	case errors.Is(err, authdomain.ErrUnauthenticated),
		errors.Is(err, token.ErrInvalidToken),
		errors.Is(err, token.ErrWrongType):
		s.metrics.AuthFailure("token")
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
			Error: "Authentification requise", ErrorCode: CodeUnauthenticated,
		})

	case errors.Is(err, authdomain.ErrInvalidCode):
		s.metrics.AuthFailure("twofa_code")
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
			Error: "Code invalide", ErrorCode: CodeInvalidCode,
		})

	case errors.Is(err, tenantdomain.ErrCrossTenantAccess):
		c.AbortWithStatusJSON(http.StatusForbidden, errorBody{
			Error: "Accès refusé", ErrorCode: CodeCrossTenant,
		})

	case errors.Is(err, permdomain.ErrForbidden),
		errors.Is(err, permdomain.ErrNotManager),
		errors.Is(err, authorization.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, errorBody{
			Error: "Accès refusé", ErrorCode: CodeForbidden,
		})

	case errors.Is(err, permdomain.ErrSelfEdit),
		errors.Is(err, authdomain.ErrTwoFANotConfigured),
		errors.Is(err, aidomain.ErrUnknownKind):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
			Error: "Requête invalide", ErrorCode: CodeInvalidInput,
		})

	case errors.Is(err, identitydomain.ErrUserExists),
		errors.Is(err, authdomain.ErrTwoFAEnabled),
		errors.Is(err, tenantdomain.ErrTenantExists):
		c.AbortWithStatusJSON(http.StatusConflict, errorBody{
			Error: "Conflit avec une ressource existante", ErrorCode: CodeConflict,
		})

	case errors.Is(err, tenantdomain.ErrTenantUnknown),
		errors.Is(err, permdomain.ErrMemberNotFound),
		errors.Is(err, identitydomain.ErrUserNotFound),
		errors.Is(err, aidomain.ErrProviderNotFound),
		errors.Is(err, subsdomain.ErrPlanNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody{
			Error: "Ressource introuvable", ErrorCode: CodeNotFound,
		})

	default:
		s.log.Error("unhandled request error",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
			Error: "Erreur interne", ErrorCode: CodeInternal,
		})
	}
}

func quotaCode(resource subsdomain.Resource) string {
	switch resource {
	case subsdomain.ResourceProducts:
		return "QUOTA_PRODUCTS_EXCEEDED"
	case subsdomain.ResourceUsers:
		return "QUOTA_USERS_EXCEEDED"
	case subsdomain.ResourceOrders:
		return "QUOTA_ORDERS_EXCEEDED"
	}
	return "QUOTA_" + strings.ToUpper(string(resource)) + "_EXCEEDED"
}

func (s *Server) badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
		Error: msg, ErrorCode: CodeInvalidInput,
	})
}
