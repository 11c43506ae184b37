package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"scenecast/config"
	"scenecast/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegisterAssetRoutes registers upload and asset management endpoints.
func (s *Server) RegisterAssetRoutes(r *gin.Engine) {
	g := r.Group("/api/assets")
	g.POST("", s.handleUpload)
	g.GET("", s.handleListAssets)
	g.GET("/:id", s.handleGetAsset)
	g.DELETE("/:id", s.handleDeleteAsset)
	g.GET("/:id/audio", s.handleAudio)
}

// AssetResponse is an asset plus its generated images
type AssetResponse struct {
	types.Asset
	Images []TimelineEntry `json:"images"`
}

// handleUpload accepts a multipart audio file and registers it as an asset
func (s *Server) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !slices.Contains(config.AllowedAudioTypes, contentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported file type %q", contentType)})
		return
	}

	limit := s.deps.MaxUploadBytes
	if limit <= 0 {
		limit = config.MaxUploadBytes
	}
	if header.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", limit)})
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".mp3"
	}
	id := uuid.New().String()
	key := path.Join(config.AudioSubdir, id+ext)

	f, err := header.Open()
	if err != nil {
		respondWithError(c, err)
		return
	}
	defer closeQuietly(f)

	ctx := c.Request.Context()
	if err := s.deps.Uploads.Put(ctx, key, f, contentType); err != nil {
		respondWithError(c, fmt.Errorf("failed to save upload: %w", err))
		return
	}
	localPath, err := s.deps.Uploads.Path(key)
	if err != nil {
		respondWithError(c, err)
		return
	}

	// Unknown duration is allowed; the asset is still usable
	var duration float64
	if s.deps.Probe != nil {
		if d, err := s.deps.Probe(localPath); err != nil {
			log.Printf("⚠️ could not probe duration of %s: %v", header.Filename, err)
		} else {
			duration = d
		}
	}

	asset := types.Asset{
		ID:              id,
		Filename:        key,
		OriginalName:    header.Filename,
		StylePrompt:     strings.TrimSpace(c.PostForm("style_prompt")),
		DurationSeconds: duration,
		Ready:           true,
		Source:          localPath,
		UploadedAt:      time.Now().UTC(),
	}
	if err := s.deps.Catalog.CreateAsset(ctx, asset); err != nil {
		if derr := s.deps.Uploads.Delete(context.WithoutCancel(ctx), key); derr != nil {
			log.Printf("failed to remove %s: %v", key, derr)
		}
		respondWithError(c, err)
		return
	}

	log.Printf("📥 Uploaded %s as asset %s (%.1fs)", header.Filename, id, duration)
	c.JSON(http.StatusCreated, asset)
}

func (s *Server) handleListAssets(c *gin.Context) {
	assets, err := s.deps.Catalog.ListAssets(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

func (s *Server) handleGetAsset(c *gin.Context) {
	ctx := c.Request.Context()
	asset, err := s.deps.Catalog.GetAsset(ctx, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	artifacts, err := s.artifactsFor(ctx, asset.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, AssetResponse{Asset: asset, Images: s.timelineEntries(ctx, artifacts)})
}

// handleDeleteAsset removes the asset, its file, its rows, its timeline and its images
func (s *Server) handleDeleteAsset(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	asset, err := s.deps.Catalog.GetAsset(ctx, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	s.deps.Coordinator.Invalidate(id)
	artifacts, err := s.deps.Catalog.DeleteAsset(ctx, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	s.deps.Registry.Remove(id)

	var keys []string
	for _, a := range artifacts {
		keys = append(keys, a.ImageRef)
	}
	var cleanup []error
	if s.deps.Artifacts != nil {
		if err := s.deps.Artifacts.Remove(ctx, keys...); err != nil {
			cleanup = append(cleanup, err)
		}
	}
	if !isRemote(asset.Source) {
		if err := s.deps.Uploads.Delete(ctx, asset.Filename); err != nil {
			cleanup = append(cleanup, err)
		}
	}
	if err := errors.Join(cleanup...); err != nil {
		log.Printf("⚠️ asset %s deleted with leftovers: %v", id, err)
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id, "images_removed": len(artifacts)})
}

// handleAudio serves an uploaded file, or redirects to a feed episode
func (s *Server) handleAudio(c *gin.Context) {
	asset, err := s.deps.Catalog.GetAsset(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	if isRemote(asset.Source) {
		c.Redirect(http.StatusFound, asset.Source)
		return
	}

	p, err := s.deps.Uploads.Path(asset.Filename)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.File(p)
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
