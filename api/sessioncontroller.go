package api

import (
	"net/http"

	"scenecast/types"

	"github.com/gin-gonic/gin"
)

// RegisterSessionRoutes registers the listening session endpoints. The
// client's media element reports through position, duration and event;
// play, pause and seek are user commands.
func (s *Server) RegisterSessionRoutes(r *gin.Engine) {
	g := r.Group("/api/session")
	g.POST("/load", s.handleSessionLoad)
	g.GET("/state", s.handleSessionState)
	g.GET("/timeline", s.handleSessionTimeline)
	g.POST("/play", s.handleSessionPlay)
	g.POST("/pause", s.handleSessionPause)
	g.POST("/seek", s.handleSessionSeek)
	g.POST("/position", s.handleSessionPosition)
	g.POST("/duration", s.handleSessionDuration)
	g.POST("/event", s.handleSessionEvent)
	g.POST("/generate", s.handleSessionGenerate)
}

// LoadRequest selects the asset to listen to
type LoadRequest struct {
	AssetID string `json:"asset_id" binding:"required"`
}

// SecondsRequest carries a position or duration
type SecondsRequest struct {
	Seconds *float64 `json:"seconds" binding:"required"`
}

// EventRequest carries a media element event such as "playing" or "waiting"
type EventRequest struct {
	Event types.MediaEvent `json:"event" binding:"required"`
}

// CommandResponse reports whether a command changed anything and the
// resulting state
type CommandResponse struct {
	Accepted bool                `json:"accepted"`
	State    types.PlaybackState `json:"state"`
}

func (s *Server) handleSessionLoad(c *gin.Context) {
	var req LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	asset, err := s.deps.Session.Load(c.Request.Context(), req.AssetID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset, "state": s.deps.Session.Tracker().State()})
}

func (s *Server) handleSessionState(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Session.Tracker().State())
}

func (s *Server) handleSessionTimeline(c *gin.Context) {
	ctx := c.Request.Context()
	state := s.deps.Session.Tracker().State()
	c.JSON(http.StatusOK, gin.H{
		"asset_id": state.AssetID,
		"timeline": s.timelineEntries(ctx, s.deps.Session.Timeline()),
	})
}

func (s *Server) handleSessionPlay(c *gin.Context) {
	s.respondWithCommand(c, s.deps.Session.Tracker().Play())
}

func (s *Server) handleSessionPause(c *gin.Context) {
	s.respondWithCommand(c, s.deps.Session.Tracker().Pause())
}

func (s *Server) handleSessionSeek(c *gin.Context) {
	seconds, ok := bindSeconds(c)
	if !ok {
		return
	}
	s.respondWithCommand(c, s.deps.Session.Tracker().Seek(seconds))
}

func (s *Server) handleSessionPosition(c *gin.Context) {
	seconds, ok := bindSeconds(c)
	if !ok {
		return
	}
	s.deps.Session.Tracker().ReportPosition(seconds)
	s.respondWithCommand(c, true)
}

func (s *Server) handleSessionDuration(c *gin.Context) {
	seconds, ok := bindSeconds(c)
	if !ok {
		return
	}
	s.deps.Session.Tracker().ReportDuration(seconds)
	s.respondWithCommand(c, true)
}

func (s *Server) handleSessionEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.respondWithCommand(c, s.deps.Session.Tracker().ReportStatusEvent(req.Event))
}

// handleSessionGenerate requests an image for the current position
func (s *Server) handleSessionGenerate(c *gin.Context) {
	id, err := s.deps.Session.GenerateNow(c.Request.Context())
	respondWithSubmission(c, id, err)
}

func (s *Server) respondWithCommand(c *gin.Context, accepted bool) {
	c.JSON(http.StatusOK, CommandResponse{Accepted: accepted, State: s.deps.Session.Tracker().State()})
}

func bindSeconds(c *gin.Context) (float64, bool) {
	var req SecondsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}
	return *req.Seconds, true
}
