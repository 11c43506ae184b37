package api

import (
	"errors"
	"net/http"

	"scenecast/generation"

	"github.com/gin-gonic/gin"
)

// RegisterGenerationRoutes registers image generation endpoints.
func (s *Server) RegisterGenerationRoutes(r *gin.Engine) {
	r.POST("/api/assets/:id/generate", s.handleGenerate)

	g := r.Group("/api/requests")
	g.GET("/:id", s.handleGetRequest)
	g.DELETE("/:id", s.handleCancelRequest)
}

// GenerateRequest asks for an image at a playback position
type GenerateRequest struct {
	Timestamp *float64 `json:"timestamp" binding:"required"`
}

// GenerateResponse carries the id of the new or merged request
type GenerateResponse struct {
	RequestID string `json:"request_id"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.deps.Coordinator.Submit(c.Request.Context(), c.Param("id"), *req.Timestamp)
	respondWithSubmission(c, id, err)
}

// respondWithSubmission reports a submit result; a merged duplicate is not an error
func respondWithSubmission(c *gin.Context, id string, err error) {
	switch {
	case errors.Is(err, generation.ErrDuplicateInFlight):
		c.JSON(http.StatusOK, GenerateResponse{RequestID: id, Duplicate: true})
	case err != nil:
		respondWithError(c, err)
	default:
		c.JSON(http.StatusAccepted, GenerateResponse{RequestID: id})
	}
}

// handleGetRequest reports a request's status. Finished requests can be
// read once.
func (s *Server) handleGetRequest(c *gin.Context) {
	req, err := s.deps.Coordinator.Query(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) handleCancelRequest(c *gin.Context) {
	id := c.Param("id")
	if err := s.deps.Coordinator.Cancel(id); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "canceled", "request_id": id})
}
