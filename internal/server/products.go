package server

import (
	"fmt"
	"net/http"

	"github.com/comptoir-labs/comptoir/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// handleProductView counts a storefront product view, deduplicated per
// visitor IP within the scope window. Repeats inside the window still get
// a 200; they just do not count twice.
func (s *Server) handleProductView(c *gin.Context) {
	tenant, _ := tenantFrom(c)
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	key := fmt.Sprintf("view:%s:%s:%s", tenant.ID, productID, c.ClientIP())
	counted := s.limiter.TrySetOnce(c.Request.Context(), key, ratelimit.ScopeProductView.Window)
	if counted {
		if err := s.views.RecordView(c.Request.Context(), tenant.CompanyID, productID); err != nil {
			s.respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "counted": counted})
}
