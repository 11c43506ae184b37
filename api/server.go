package api

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"scenecast/catalog"
	"scenecast/feeds"
	"scenecast/generation"
	"scenecast/session"
	"scenecast/storage"
	"scenecast/timeline"
	"scenecast/types"

	"github.com/gin-gonic/gin"
)

// Catalog is the asset catalog the API reads and writes
type Catalog interface {
	CreateAsset(ctx context.Context, asset types.Asset) error
	GetAsset(ctx context.Context, id string) (types.Asset, error)
	ListAssets(ctx context.Context) ([]types.Asset, error)
	DeleteAsset(ctx context.Context, id string) ([]types.Artifact, error)
	ListArtifacts(ctx context.Context, assetID string) ([]types.Artifact, error)
}

// Generator is satisfied by *generation.Coordinator
type Generator interface {
	Submit(ctx context.Context, assetID string, timestamp float64) (string, error)
	Query(id string) (types.GenerationRequest, error)
	Cancel(id string) error
	Invalidate(assetID string)
}

// ImageRemover is satisfied by *storage.ArtifactStore
type ImageRemover interface {
	Remove(ctx context.Context, keys ...string) error
}

// FeedImporter is satisfied by *feeds.Importer
type FeedImporter interface {
	Import(ctx context.Context, feedURL, stylePrompt string, limit int) (feeds.Result, error)
}

// Deps holds everything the handlers need. Feeds and Artifacts are optional.
type Deps struct {
	AppName     string
	Catalog     Catalog
	Coordinator Generator
	Registry    *timeline.Registry
	Session     *session.Session
	// Uploads holds audio files; Images holds generated images
	Uploads   *storage.Local
	Images    storage.Blobs
	Artifacts ImageRemover
	Feeds     FeedImporter
	// Probe returns the duration of an audio file in seconds
	Probe          func(path string) (float64, error)
	MaxUploadBytes int64
}

// Server bundles the API handlers
type Server struct {
	deps Deps
}

// NewServer creates a server from deps
func NewServer(deps Deps) *Server {
	return &Server{deps: deps}
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	// Minimal middleware: recovery; logger optional to reduce verbosity
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = 32 << 20

	RegisterHealthRoutes(r, s.deps.AppName)
	s.RegisterAssetRoutes(r)
	s.RegisterGenerationRoutes(r)
	s.RegisterTimelineRoutes(r)
	s.RegisterSessionRoutes(r)
	s.RegisterFeedRoutes(r)
	return r
}

// RegisterHealthRoutes registers health check endpoints.
func RegisterHealthRoutes(r *gin.Engine, appName string) {
	r.GET("/health", handleHealth)
	r.GET("/api/health", handleHealth)
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name": appName,
			"endpoints": []string{
				"POST /api/assets",
				"GET /api/assets/:id/timeline",
				"POST /api/assets/:id/generate",
				"GET /api/requests/:id",
				"POST /api/session/load",
				"POST /api/feeds/import",
			},
		})
	})
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, generation.ErrNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, generation.ErrInvalidTimestamp):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrExists),
		errors.Is(err, generation.ErrNotCancelable),
		errors.Is(err, session.ErrNoPosition):
		return http.StatusConflict
	case errors.Is(err, generation.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func respondWithError(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Printf("❌ API Error: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		log.Printf("close: %v", err)
	}
}
