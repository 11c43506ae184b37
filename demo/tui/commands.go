package tui

import (
	"context"
	"errors"
	"time"

	"scenecast/demo/client"
	"scenecast/types"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	tickInterval = 500 * time.Millisecond
	seekStep     = 10.0
	callTimeout  = 5 * time.Second
)

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}

// loadAsset loads assetID, or the newest asset when it is empty, and
// reports that the device can play it
func loadAsset(c *client.Client, assetID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout()
		defer cancel()

		if assetID == "" {
			assets, err := c.ListAssets(ctx)
			if err != nil {
				return LoadedMsg{Err: err}
			}
			if len(assets) == 0 {
				return LoadedMsg{Err: errors.New("no assets uploaded yet")}
			}
			assetID = assets[0].ID
		}

		asset, err := c.Load(ctx, assetID)
		if err != nil {
			return LoadedMsg{Err: err}
		}
		if _, err := c.ReportEvent(ctx, types.EventCanPlay); err != nil {
			return LoadedMsg{Err: err}
		}
		return LoadedMsg{Asset: asset}
	}
}

// pollState fetches the session state
func pollState(c *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout()
		defer cancel()
		state, err := c.State(ctx)
		return StateMsg{State: state, Err: err}
	}
}

// reportPosition plays the part of the media device's timeupdate event.
// Reaching the end also reports "ended".
func reportPosition(c *client.Client, seconds float64, ended bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout()
		defer cancel()
		state, err := c.ReportPosition(ctx, seconds)
		if err == nil && ended {
			state, err = c.ReportEvent(ctx, types.EventEnded)
		}
		return StateMsg{State: state, Err: err}
	}
}

func togglePlay(c *client.Client, playing bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout()
		defer cancel()
		if playing {
			state, err := c.Pause(ctx)
			return StateMsg{State: state, Err: err}
		}
		state, err := c.Play(ctx)
		return StateMsg{State: state, Err: err}
	}
}

// seekTo seeks and, being the device, completes the seek right away
func seekTo(c *client.Client, seconds float64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout()
		defer cancel()
		state, err := c.Seek(ctx, seconds)
		if err != nil {
			return StateMsg{Err: err}
		}
		state, err = c.ReportEvent(ctx, types.EventSeeked)
		return StateMsg{State: state, Err: err}
	}
}

func generate(c *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout()
		defer cancel()
		g, err := c.Generate(ctx)
		return GeneratedMsg{Generated: g, Err: err}
	}
}

func fetchTimeline(c *client.Client, assetID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout()
		defer cancel()
		entries, err := c.Timeline(ctx, assetID)
		return TimelineMsg{Entries: entries, Err: err}
	}
}

func fetchNearest(c *client.Client, assetID string, seconds float64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout()
		defer cancel()
		e, err := c.Nearest(ctx, assetID, seconds)
		return NearestMsg{Entry: e, Found: err == nil}
	}
}

func pollRequest(c *client.Client, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := withTimeout()
		defer cancel()
		req, err := c.Request(ctx, id)
		if req.RequestID == "" {
			req.RequestID = id
		}
		return RequestMsg{Request: req, Err: err}
	}
}

// tickCmd creates a command that ticks every 500ms for polling
func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
