package tui

import (
	"time"

	"scenecast/demo/client"
	"scenecast/types"
)

// Messages for the tea program (polling-based)

// TickMsg is sent periodically to advance the playhead and poll
type TickMsg struct {
	Time time.Time
}

// LoadedMsg is sent once the session has loaded an asset
type LoadedMsg struct {
	Asset types.Asset
	Err   error
}

// StateMsg carries the session state after a poll or command
type StateMsg struct {
	State types.PlaybackState
	Err   error
}

// TimelineMsg carries the loaded asset's markers
type TimelineMsg struct {
	Entries []client.TimelineEntry
	Err     error
}

// NearestMsg carries the image closest to the playhead
type NearestMsg struct {
	Entry client.TimelineEntry
	Found bool
}

// GeneratedMsg is sent when a generation request was accepted
type GeneratedMsg struct {
	Generated client.Generated
	Err       error
}

// RequestMsg carries the status of a pending request
type RequestMsg struct {
	Request types.GenerationRequest
	Err     error
}
