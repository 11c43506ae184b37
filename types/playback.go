package types

// PlaybackStatus represents the position tracker state machine
type PlaybackStatus string

const (
	PlaybackIdle      PlaybackStatus = "idle"
	PlaybackLoading   PlaybackStatus = "loading"
	PlaybackReady     PlaybackStatus = "ready"
	PlaybackPlaying   PlaybackStatus = "playing"
	PlaybackPaused    PlaybackStatus = "paused"
	PlaybackSeeking   PlaybackStatus = "seeking"
	PlaybackBuffering PlaybackStatus = "buffering"
	PlaybackEnded     PlaybackStatus = "ended"
)

// HasPosition reports whether PositionSeconds carries meaning in this status.
func (s PlaybackStatus) HasPosition() bool {
	switch s {
	case PlaybackReady, PlaybackPlaying, PlaybackPaused, PlaybackSeeking, PlaybackBuffering, PlaybackEnded:
		return true
	}
	return false
}

// MediaEvent is a status notification coming from the media device.
type MediaEvent string

const (
	// EventCanPlay fires once metadata is loaded, or when buffering recovers.
	EventCanPlay MediaEvent = "canplay"
	EventPlaying MediaEvent = "playing"
	EventPaused  MediaEvent = "pause"
	EventWaiting MediaEvent = "waiting"
	EventSeeked  MediaEvent = "seeked"
	EventEnded   MediaEvent = "ended"
)

// PlaybackState is a value snapshot of the tracker for one loaded asset.
type PlaybackState struct {
	AssetID         string         `json:"asset_id"`
	PositionSeconds float64        `json:"position_seconds"`
	DurationSeconds float64        `json:"duration_seconds"`
	Status          PlaybackStatus `json:"status"`
}
