package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"scenecast/generation"
	"scenecast/playback"
	"scenecast/timeline"
	"scenecast/types"
)

var ErrNoPosition = errors.New("no meaningful playback position")

// Catalog is the part of the asset catalog the session reads
type Catalog interface {
	GetAsset(ctx context.Context, id string) (types.Asset, error)
	ListArtifacts(ctx context.Context, assetID string) ([]types.Artifact, error)
}

// Submitter is satisfied by *generation.Coordinator
type Submitter interface {
	Submit(ctx context.Context, assetID string, timestamp float64) (string, error)
	Invalidate(assetID string)
}

// Session is the single listening session of this process. It owns the
// tracker and keeps the coordinator and the timeline in step with whatever
// asset is loaded.
type Session struct {
	// mu serializes Load with GenerateNow so a request can never be
	// submitted for an asset that is being unloaded
	mu sync.Mutex

	tracker     *playback.Tracker
	coordinator Submitter
	registry    *timeline.Registry
	catalog     Catalog
}

// New wires a session. When the tracker switches assets, requests for the
// previous asset are invalidated and its timeline is dropped.
func New(tracker *playback.Tracker, coordinator Submitter, registry *timeline.Registry, catalog Catalog) *Session {
	s := &Session{
		tracker:     tracker,
		coordinator: coordinator,
		registry:    registry,
		catalog:     catalog,
	}

	tracker.OnLoad(func(previous, next string) {
		if previous == "" || previous == next {
			return
		}
		coordinator.Invalidate(previous)
		registry.Remove(previous)
	})
	return s
}

// Tracker returns the session's position tracker
func (s *Session) Tracker() *playback.Tracker {
	return s.tracker
}

// Load resolves assetID, loads it and seeds its timeline from stored artifacts
func (s *Session) Load(ctx context.Context, assetID string) (types.Asset, error) {
	asset, err := s.catalog.GetAsset(ctx, assetID)
	if err != nil {
		return types.Asset{}, err
	}

	artifacts, err := s.catalog.ListArtifacts(ctx, assetID)
	if err != nil {
		return types.Asset{}, fmt.Errorf("failed to load artifacts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracker.Load(asset)

	s.registry.Seed(artifacts)

	log.Printf("session: loaded asset %s (%d stored artifacts)", assetID, len(artifacts))
	return asset, nil
}

// GenerateNow requests an image for the current playback position. The
// position is captured before anything else happens.
func (s *Session) GenerateNow(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.tracker.State()
	if state.AssetID == "" || !state.Status.HasPosition() {
		return "", ErrNoPosition
	}

	return s.coordinator.Submit(ctx, state.AssetID, state.PositionSeconds)
}

// Timeline returns the artifacts of the loaded asset
func (s *Session) Timeline() []types.Artifact {
	return s.registry.List(s.tracker.State().AssetID)
}

// CatalogAssets adapts a catalog to generation.AssetResolver, translating
// its not-found error.
type CatalogAssets struct {
	Catalog  Catalog
	NotFound error
}

// Asset implements generation.AssetResolver
func (c CatalogAssets) Asset(ctx context.Context, id string) (types.Asset, error) {
	a, err := c.Catalog.GetAsset(ctx, id)
	if err != nil && c.NotFound != nil && errors.Is(err, c.NotFound) {
		return types.Asset{}, fmt.Errorf("%w: %v", generation.ErrNotFound, err)
	}
	return a, err
}

var _ generation.AssetResolver = CatalogAssets{}
