package server

import (
	"net/http"
	"strings"

	authdomain "github.com/comptoir-labs/comptoir/internal/authflow/domain"
	identitydomain "github.com/comptoir-labs/comptoir/internal/identity/domain"
	"github.com/gin-gonic/gin"
)

type userView struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
	CompanyID   string `json:"company_id"`
}

func newUserView(u *identitydomain.User) userView {
	return userView{
		ID:          u.ID.String(),
		Login:       u.Login,
		DisplayName: u.DisplayName,
		CompanyID:   u.CompanyID.String(),
	}
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Login    string `json:"login"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := bindRequest(c, &req); err != nil {
		s.badRequest(c, "Requête invalide")
		return
	}
	login := req.Login
	if login == "" {
		login = req.Email
	}
	if login == "" || req.Password == "" {
		s.badRequest(c, "Identifiant et mot de passe requis")
		return
	}

	result, err := s.auth.Login(c.Request.Context(), authdomain.LoginInput{
		Login:    login,
		Password: req.Password,
		IP:       c.ClientIP(),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	if result.Requires2FA {
		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"requires_2fa":      true,
			"pending_2fa_token": result.PendingToken,
		})
		return
	}

	user, err := s.users.FindByLogin(c.Request.Context(), strings.ToLower(strings.TrimSpace(login)))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"access_token":  result.Pair.AccessToken,
		"refresh_token": result.Pair.RefreshToken,
		"expires_in":    result.Pair.ExpiresIn,
		"user":          newUserView(user),
	})
}

func (s *Server) handleVerify2FA(c *gin.Context) {
	var req struct {
		PendingToken string `json:"pending_2fa_token"`
		PendingAlias string `json:"pending_token"`
		Code         string `json:"code"`
	}
	if err := bindRequest(c, &req); err != nil {
		s.badRequest(c, "Requête invalide")
		return
	}
	pending := req.PendingToken
	if pending == "" {
		pending = req.PendingAlias
	}
	if pending == "" || req.Code == "" {
		s.badRequest(c, "Jeton et code requis")
		return
	}

	pair, err := s.auth.Verify2FA(c.Request.Context(), pending, req.Code, c.ClientIP())
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondPair(c, pair)
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := bindRequest(c, &req); err != nil || req.RefreshToken == "" {
		s.badRequest(c, "Jeton de rafraîchissement requis")
		return
	}

	pair, err := s.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondPair(c, pair)
}

func (s *Server) handleLogout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := bindRequest(c, &req); err != nil {
		s.badRequest(c, "Requête invalide")
		return
	}
	if err := s.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMe(c *gin.Context) {
	p, _ := principalFrom(c)
	user, err := s.users.FindByID(c.Request.Context(), p.UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	enabled, err := s.auth.TwoFAEnabled(c.Request.Context(), p.UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	super, err := s.authz.IsSuperadmin(c.Request.Context(), p.UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"user":          newUserView(user),
		"two_fa":        gin.H{"enabled": enabled},
		"is_superadmin": super,
	})
}

func (s *Server) handleSetup2FA(c *gin.Context) {
	p, _ := principalFrom(c)
	setup, err := s.auth.Setup2FA(c.Request.Context(), p.UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	// qr_code carries the otpauth:// URI; clients render the QR locally
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"secret":       setup.Secret,
		"qr_code":      setup.OtpauthURI,
		"backup_codes": setup.BackupCodes,
	})
}

func (s *Server) handleConfirm2FA(c *gin.Context) {
	p, _ := principalFrom(c)
	var req struct {
		Code string `json:"code"`
	}
	if err := bindRequest(c, &req); err != nil || req.Code == "" {
		s.badRequest(c, "Code requis")
		return
	}
	if err := s.auth.Confirm2FA(c.Request.Context(), p.UserID, req.Code); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDisable2FA(c *gin.Context) {
	p, _ := principalFrom(c)
	var req struct {
		Code string `json:"code"`
	}
	if err := bindRequest(c, &req); err != nil || req.Code == "" {
		s.badRequest(c, "Code requis")
		return
	}
	if err := s.auth.Disable2FA(c.Request.Context(), p.UserID, req.Code); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleTwoFAStatus(c *gin.Context) {
	p, _ := principalFrom(c)
	enabled, err := s.auth.TwoFAEnabled(c.Request.Context(), p.UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enabled": enabled})
}

func (s *Server) handleRegenerateBackupCodes(c *gin.Context) {
	p, _ := principalFrom(c)
	var req struct {
		Code string `json:"code"`
	}
	if err := bindRequest(c, &req); err != nil || req.Code == "" {
		s.badRequest(c, "Code requis")
		return
	}
	codes, err := s.auth.RegenerateBackupCodes(c.Request.Context(), p.UserID, req.Code)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "backup_codes": codes})
}

// handleMyPermissions reports the caller's effective module grants inside
// the resolved tenant, for the backoffice navigation.
func (s *Server) handleMyPermissions(c *gin.Context) {
	p, _ := principalFrom(c)
	tenant, _ := tenantFrom(c)

	manager, err := s.engine.IsManager(c.Request.Context(), p, tenant)
	if err != nil {
		s.respondError(c, err)
		return
	}
	perms, err := s.engine.PermissionsFor(c.Request.Context(), p.UserID, tenant.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	modules := make(gin.H, len(perms))
	for _, perm := range perms {
		modules[perm.Module] = gin.H{
			"level": perm.AccessLevel,
			"pages": perm.PageOverrides,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"is_manager": manager,
		"modules":    modules,
	})
}

func (s *Server) respondPair(c *gin.Context, pair *authdomain.TokenPair) {
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
	})
}
