package server

import (
	"net/http"

	aidomain "github.com/comptoir-labs/comptoir/internal/aiprovider/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleListProviders(c *gin.Context) {
	views, err := s.registry.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "providers": views})
}

func (s *Server) handleGetProvider(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	view, err := s.registry.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "provider": view})
}

func (s *Server) handleCreateProvider(c *gin.Context) {
	var req struct {
		Name        string  `json:"name"`
		Kind        string  `json:"kind"`
		APIKey      string  `json:"api_key"`
		Enabled     bool    `json:"enabled"`
		Priority    int     `json:"priority"`
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
	}
	if err := bindRequest(c, &req); err != nil || req.Name == "" || req.Kind == "" {
		s.badRequest(c, "Nom et type de fournisseur requis")
		return
	}

	view, err := s.registry.Create(c.Request.Context(), aidomain.CreateInput{
		Name:        req.Name,
		Kind:        aidomain.Kind(req.Kind),
		APIKey:      req.APIKey,
		Enabled:     req.Enabled,
		Priority:    req.Priority,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "provider": view})
}

func (s *Server) handleUpdateProvider(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name        *string  `json:"name"`
		APIKey      *string  `json:"api_key"`
		Enabled     *bool    `json:"enabled"`
		Priority    *int     `json:"priority"`
		Model       *string  `json:"model"`
		MaxTokens   *int     `json:"max_tokens"`
		Temperature *float64 `json:"temperature"`
	}
	if err := bindRequest(c, &req); err != nil {
		s.badRequest(c, "Requête invalide")
		return
	}

	view, err := s.registry.Update(c.Request.Context(), id, aidomain.UpdateInput{
		Name:        req.Name,
		APIKey:      req.APIKey,
		Enabled:     req.Enabled,
		Priority:    req.Priority,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "provider": view})
}

func (s *Server) handleDeleteProvider(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := s.registry.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleTestProvider(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	view, err := s.registry.TestConnection(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	result := "failure"
	if view.TestResult == aidomain.TestResultSuccess {
		result = "success"
	}
	s.metrics.ProviderProbe(result)

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"provider": view,
		"result":   view.TestResult,
	})
}

// handleProviderMetrics aggregates usage across every provider for the
// platform dashboard.
func (s *Server) handleProviderMetrics(c *gin.Context) {
	views, err := s.registry.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	var (
		totalRequests  int64
		failedRequests int64
		totalTokens    int64
		totalCost      float64
	)
	perProvider := make([]gin.H, 0, len(views))
	for _, v := range views {
		totalRequests += v.TotalRequests
		failedRequests += v.FailedRequests
		totalTokens += v.TotalTokens
		totalCost += v.TotalCost
		perProvider = append(perProvider, gin.H{
			"id":              v.ID.String(),
			"name":            v.Name,
			"kind":            v.Kind,
			"total_requests":  v.TotalRequests,
			"failed_requests": v.FailedRequests,
			"total_tokens":    v.TotalTokens,
			"total_cost":      v.TotalCost,
			"avg_latency_ms":  v.AvgLatencyMS,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"total_requests":  totalRequests,
		"failed_requests": failedRequests,
		"total_tokens":    totalTokens,
		"total_cost":      totalCost,
		"providers":       perProvider,
	})
}

func (s *Server) handleSeedProviders(c *gin.Context) {
	if err := s.registry.SeedDefaults(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	views, err := s.registry.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "providers": views})
}
