package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"scenecast/types"
)

// TimelineEntry is one generated image on an asset's timeline
type TimelineEntry struct {
	ArtifactID       string  `json:"artifact_id"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	TranscriptText   string  `json:"transcript_text"`
	ImageRef         string  `json:"image_ref"`
}

// Generated is the answer to a generation request
type Generated struct {
	RequestID string `json:"request_id"`
	Duplicate bool   `json:"duplicate"`
}

type commandResponse struct {
	Accepted bool                `json:"accepted"`
	State    types.PlaybackState `json:"state"`
}

// ListAssets returns every registered asset, newest first
func (c *Client) ListAssets(ctx context.Context) ([]types.Asset, error) {
	var resp struct {
		Assets []types.Asset `json:"assets"`
	}
	if err := c.doJSONRequest(ctx, http.MethodGet, "/api/assets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Assets, nil
}

// Load makes assetID the session's asset
func (c *Client) Load(ctx context.Context, assetID string) (types.Asset, error) {
	var resp struct {
		Asset types.Asset `json:"asset"`
	}
	err := c.doJSONRequest(ctx, http.MethodPost, "/api/session/load", map[string]string{"asset_id": assetID}, &resp)
	return resp.Asset, err
}

// State returns the session's playback state
func (c *Client) State(ctx context.Context) (types.PlaybackState, error) {
	var state types.PlaybackState
	err := c.doJSONRequest(ctx, http.MethodGet, "/api/session/state", nil, &state)
	return state, err
}

// Play asks the session to start playing
func (c *Client) Play(ctx context.Context) (types.PlaybackState, error) {
	return c.command(ctx, "/api/session/play", nil)
}

// Pause asks the session to pause
func (c *Client) Pause(ctx context.Context) (types.PlaybackState, error) {
	return c.command(ctx, "/api/session/pause", nil)
}

// Seek moves the session to seconds
func (c *Client) Seek(ctx context.Context, seconds float64) (types.PlaybackState, error) {
	return c.command(ctx, "/api/session/seek", map[string]float64{"seconds": seconds})
}

// ReportPosition reports where the device's playhead is
func (c *Client) ReportPosition(ctx context.Context, seconds float64) (types.PlaybackState, error) {
	return c.command(ctx, "/api/session/position", map[string]float64{"seconds": seconds})
}

// ReportEvent reports a media device event
func (c *Client) ReportEvent(ctx context.Context, evt types.MediaEvent) (types.PlaybackState, error) {
	return c.command(ctx, "/api/session/event", map[string]types.MediaEvent{"event": evt})
}

func (c *Client) command(ctx context.Context, path string, payload interface{}) (types.PlaybackState, error) {
	var resp commandResponse
	err := c.doJSONRequest(ctx, http.MethodPost, path, payload, &resp)
	return resp.State, err
}

// Generate requests an image at the session's current position
func (c *Client) Generate(ctx context.Context) (Generated, error) {
	var g Generated
	err := c.doJSONRequest(ctx, http.MethodPost, "/api/session/generate", nil, &g)
	return g, err
}

// Request returns a generation request's status
func (c *Client) Request(ctx context.Context, id string) (types.GenerationRequest, error) {
	var req types.GenerationRequest
	err := c.doJSONRequest(ctx, http.MethodGet, "/api/requests/"+url.PathEscape(id), nil, &req)
	return req, err
}

// Timeline returns the images of assetID ordered by timestamp
func (c *Client) Timeline(ctx context.Context, assetID string) ([]TimelineEntry, error) {
	var resp struct {
		Timeline []TimelineEntry `json:"timeline"`
	}
	path := fmt.Sprintf("/api/assets/%s/timeline", url.PathEscape(assetID))
	if err := c.doJSONRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Timeline, nil
}

// Nearest returns the image closest to seconds
func (c *Client) Nearest(ctx context.Context, assetID string, seconds float64) (TimelineEntry, error) {
	var e TimelineEntry
	path := fmt.Sprintf("/api/assets/%s/timeline/nearest?t=%.3f", url.PathEscape(assetID), seconds)
	err := c.doJSONRequest(ctx, http.MethodGet, path, nil, &e)
	return e, err
}
