package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterFeedRoutes registers podcast/audiobook feed endpoints.
func (s *Server) RegisterFeedRoutes(r *gin.Engine) {
	g := r.Group("/api/feeds")
	g.POST("/import", s.handleFeedImport)
}

// ImportFeedRequest names a feed whose audio episodes become assets
type ImportFeedRequest struct {
	URL         string `json:"url" binding:"required"`
	StylePrompt string `json:"style_prompt"`
	Limit       int    `json:"limit"`
}

// handleFeedImport registers the feed's episodes synchronously and reports
// what was imported.
func (s *Server) handleFeedImport(c *gin.Context) {
	if s.deps.Feeds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feed import is not enabled"})
		return
	}

	var req ImportFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.deps.Feeds.Import(c.Request.Context(), req.URL, req.StylePrompt, req.Limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
