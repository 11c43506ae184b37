package api

import (
	"context"
	"log"
	"net/http"
	"path"
	"strconv"
	"strings"

	"scenecast/timeline"
	"scenecast/types"

	"github.com/gin-gonic/gin"
)

// RegisterTimelineRoutes registers timeline and image endpoints.
func (s *Server) RegisterTimelineRoutes(r *gin.Engine) {
	r.GET("/api/assets/:id/timeline", s.handleTimeline)
	r.GET("/api/assets/:id/timeline/nearest", s.handleNearest)
	r.GET("/api/images/*key", s.handleImage)
}

// TimelineEntry is the public view of an artifact
type TimelineEntry struct {
	ArtifactID       string  `json:"artifact_id"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	TranscriptText   string  `json:"transcript_text"`
	ImagePromptText  string  `json:"image_prompt_text,omitempty"`
	ImageRef         string  `json:"image_ref"`
}

// loaded reports whether assetID is the session's current asset. The
// registry can hold entries for other assets, e.g. from a direct generate,
// so only the loaded asset's timeline is read from it.
func (s *Server) loaded(assetID string) bool {
	return s.deps.Session != nil && s.deps.Session.Tracker().State().AssetID == assetID
}

// artifactsFor returns the live timeline when the asset is loaded and the
// stored artifacts otherwise
func (s *Server) artifactsFor(ctx context.Context, assetID string) ([]types.Artifact, error) {
	if s.loaded(assetID) {
		return s.deps.Registry.List(assetID), nil
	}
	if _, err := s.deps.Catalog.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}
	return s.deps.Catalog.ListArtifacts(ctx, assetID)
}

func (s *Server) timelineEntries(ctx context.Context, artifacts []types.Artifact) []TimelineEntry {
	out := make([]TimelineEntry, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, s.timelineEntry(ctx, a))
	}
	return out
}

func (s *Server) timelineEntry(ctx context.Context, a types.Artifact) TimelineEntry {
	ref := a.ImageHandle
	if a.ImageRef != "" && s.deps.Images != nil {
		if u, err := s.deps.Images.URL(ctx, a.ImageRef); err != nil {
			log.Printf("⚠️ no URL for %s: %v", a.ImageRef, err)
		} else {
			ref = u
		}
	}
	return TimelineEntry{
		ArtifactID:       a.ArtifactID,
		TimestampSeconds: a.TimestampSeconds,
		TranscriptText:   a.TranscriptText,
		ImagePromptText:  a.ImagePromptText,
		ImageRef:         ref,
	}
}

func (s *Server) handleTimeline(c *gin.Context) {
	ctx := c.Request.Context()
	artifacts, err := s.artifactsFor(ctx, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset_id": c.Param("id"), "timeline": s.timelineEntries(ctx, artifacts)})
}

// handleNearest returns the artifact closest to ?t=
func (s *Server) handleNearest(c *gin.Context) {
	t, err := strconv.ParseFloat(c.Query("t"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "t must be a number of seconds"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")

	reg := s.deps.Registry
	if !s.loaded(id) {
		artifacts, err := s.artifactsFor(ctx, id)
		if err != nil {
			respondWithError(c, err)
			return
		}
		reg = timeline.NewRegistry()
		reg.Seed(artifacts)
	}

	a, ok := reg.Nearest(id, t)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no images for this asset"})
		return
	}
	c.JSON(http.StatusOK, s.timelineEntry(ctx, a))
}

// handleImage streams a stored image
func (s *Server) handleImage(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || s.deps.Images == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	rc, err := s.deps.Images.Get(c.Request.Context(), key)
	if err != nil {
		respondWithError(c, err)
		return
	}
	defer closeQuietly(rc)

	contentType := "image/png"
	if ext := strings.ToLower(path.Ext(key)); ext == ".jpg" || ext == ".jpeg" {
		contentType = "image/jpeg"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}
