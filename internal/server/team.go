package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	permdomain "github.com/comptoir-labs/comptoir/internal/permission/domain"
	"github.com/gin-gonic/gin"
)

type teamMemberView struct {
	User        userView `json:"user"`
	IsManager   bool     `json:"is_manager"`
	Permissions []gin.H  `json:"permissions"`
}

func newTeamMemberView(m permdomain.TeamMember) teamMemberView {
	perms := make([]gin.H, 0, len(m.Permissions))
	for _, p := range m.Permissions {
		perms = append(perms, gin.H{
			"module": p.Module,
			"level":  p.AccessLevel,
			"pages":  p.PageOverrides,
		})
	}
	return teamMemberView{
		User:        newUserView(&m.User),
		IsManager:   m.IsManager,
		Permissions: perms,
	}
}

func (s *Server) handleListTeam(c *gin.Context) {
	p, _ := principalFrom(c)
	tenant, _ := tenantFrom(c)

	members, err := s.engine.ListTeam(c.Request.Context(), p, tenant)
	if err != nil {
		s.respondError(c, err)
		return
	}
	views := make([]teamMemberView, 0, len(members))
	for _, m := range members {
		views = append(views, newTeamMemberView(m))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "members": views})
}

func (s *Server) handleInvite(c *gin.Context) {
	p, _ := principalFrom(c)
	tenant, _ := tenantFrom(c)

	var req struct {
		Email       string                            `json:"email"`
		Name        string                            `json:"name"`
		Permissions map[string]permdomain.ModuleGrant `json:"permissions"`
	}
	if err := bindRequest(c, &req); err != nil || req.Email == "" {
		s.badRequest(c, "Adresse e-mail requise")
		return
	}

	result, err := s.engine.Invite(c.Request.Context(), p, tenant, permdomain.InviteInput{
		Email:       req.Email,
		DisplayName: req.Name,
		Grants:      req.Permissions,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"user":          newUserView(result.User),
		"temp_password": result.TempPassword,
	})
}

// handleModulePages lists the known modules and their pages so the
// backoffice can render the permission matrix.
func (s *Server) handleModulePages(c *gin.Context) {
	modules := make([]gin.H, 0, len(permdomain.Catalog))
	for _, def := range permdomain.Catalog {
		modules = append(modules, gin.H{
			"id":    def.ID,
			"name":  def.Name,
			"pages": def.Pages,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "modules": modules})
}

func (s *Server) handleGetPermissions(c *gin.Context) {
	p, _ := principalFrom(c)
	tenant, _ := tenantFrom(c)

	targetID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	manager, err := s.engine.IsManager(c.Request.Context(), p, tenant)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !manager && targetID != p.UserID {
		s.respondError(c, permdomain.ErrNotManager)
		return
	}

	perms, err := s.engine.PermissionsFor(c.Request.Context(), targetID, tenant.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	views := make([]gin.H, 0, len(perms))
	for _, perm := range perms {
		views = append(views, gin.H{
			"module": perm.Module,
			"level":  perm.AccessLevel,
			"pages":  perm.PageOverrides,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "permissions": views})
}

func (s *Server) handleSetPermissions(c *gin.Context) {
	p, _ := principalFrom(c)
	tenant, _ := tenantFrom(c)

	targetID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	var req struct {
		Permissions map[string]permdomain.ModuleGrant `json:"permissions"`
	}
	if err := bindRequest(c, &req); err != nil || req.Permissions == nil {
		s.badRequest(c, "Permissions requises")
		return
	}

	if err := s.engine.SetPermissions(c.Request.Context(), p, tenant, targetID, req.Permissions); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	p, _ := principalFrom(c)
	tenant, _ := tenantFrom(c)

	targetID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	if err := s.engine.Remove(c.Request.Context(), p, tenant, targetID); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseIDParam(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
			Error: "Identifiant invalide", ErrorCode: CodeInvalidInput,
		})
		return 0, false
	}
	return id, true
}
