package playback

import (
	"math"
	"sync"

	"scenecast/pubsub"
	"scenecast/types"
)

// LoadHook is called when a new asset replaces the previous one.
// previous is empty on the first load.
type LoadHook func(previous, next string)

// Tracker follows the playback position of the currently loaded asset. All
// transitions are synchronous and cheap; subscribers are notified through a
// non-blocking hub so the tracker never waits on them.
type Tracker struct {
	mu       sync.RWMutex
	asset    types.Asset
	state    types.PlaybackState
	resumeTo types.PlaybackStatus // status to return to after Seeking or Buffering

	hooksMu sync.Mutex
	hooks   []LoadHook

	hub *pubsub.Hub[types.PlaybackState]
}

// NewTracker creates an idle tracker
func NewTracker() *Tracker {
	return &Tracker{
		state: types.PlaybackState{Status: types.PlaybackIdle},
		hub:   pubsub.NewHub[types.PlaybackState](),
	}
}

// OnLoad registers a hook run on every Load, before the new asset becomes
// visible. Hooks must not call back into the tracker.
func (t *Tracker) OnLoad(hook LoadHook) {
	t.hooksMu.Lock()
	defer t.hooksMu.Unlock()
	t.hooks = append(t.hooks, hook)
}

// Load discards all state for the previous asset and starts loading the new one
func (t *Tracker) Load(asset types.Asset) {
	t.hooksMu.Lock()
	hooks := append([]LoadHook(nil), t.hooks...)
	t.hooksMu.Unlock()

	t.mu.Lock()
	previous := t.asset.ID

	// Hooks run under the lock so no reader can observe the old asset after
	// its requests were invalidated.
	for _, hook := range hooks {
		hook(previous, asset.ID)
	}

	t.asset = asset
	t.resumeTo = ""
	t.state = types.PlaybackState{
		AssetID:         asset.ID,
		DurationSeconds: asset.DurationSeconds,
		Status:          types.PlaybackLoading,
	}
	t.hub.Publish(t.state)
	t.mu.Unlock()
}

// ReportPosition records the position reported by the media device. Reports
// are ignored while a seek is in progress; the seek target stands until the
// device confirms it with seeked.
func (t *Tracker) ReportPosition(seconds float64) {
	if !finite(seconds) || seconds < 0 {
		return
	}

	t.update(func() bool {
		if !t.state.Status.HasPosition() || t.state.Status == types.PlaybackSeeking {
			return false
		}
		if t.state.DurationSeconds > 0 && seconds > t.state.DurationSeconds {
			seconds = t.state.DurationSeconds
		}
		if seconds == t.state.PositionSeconds {
			return false
		}
		t.state.PositionSeconds = seconds
		return true
	})
}

// ReportDuration records the duration once the media device knows it
func (t *Tracker) ReportDuration(seconds float64) {
	if !finite(seconds) || seconds <= 0 {
		return
	}

	t.update(func() bool {
		if t.state.Status == types.PlaybackIdle || seconds == t.state.DurationSeconds {
			return false
		}
		t.state.DurationSeconds = seconds
		if t.state.PositionSeconds > seconds {
			t.state.PositionSeconds = seconds
		}
		return true
	})
}

// ReportStatusEvent applies a media device event. It reports whether the
// event changed anything.
func (t *Tracker) ReportStatusEvent(evt types.MediaEvent) bool {
	return t.update(func() bool {
		s := t.state.Status
		switch evt {
		case types.EventCanPlay:
			switch s {
			case types.PlaybackLoading:
				return t.setStatus(types.PlaybackReady)
			case types.PlaybackBuffering:
				return t.setStatus(t.resumeStatus())
			}
		case types.EventPlaying:
			switch s {
			case types.PlaybackReady, types.PlaybackPaused, types.PlaybackBuffering:
				return t.setStatus(types.PlaybackPlaying)
			case types.PlaybackSeeking:
				return t.setResume(types.PlaybackPlaying)
			}
		case types.EventPaused:
			switch s {
			case types.PlaybackPlaying:
				return t.setStatus(types.PlaybackPaused)
			case types.PlaybackSeeking, types.PlaybackBuffering:
				return t.setResume(types.PlaybackPaused)
			}
		case types.EventWaiting:
			if s == types.PlaybackPlaying {
				t.resumeTo = types.PlaybackPlaying
				return t.setStatus(types.PlaybackBuffering)
			}
		case types.EventSeeked:
			if s == types.PlaybackSeeking {
				return t.setStatus(t.resumeStatus())
			}
		case types.EventEnded:
			if s == types.PlaybackPlaying || s == types.PlaybackBuffering {
				if t.state.DurationSeconds > 0 {
					t.state.PositionSeconds = t.state.DurationSeconds
				}
				return t.setStatus(types.PlaybackEnded)
			}
		}
		return false
	})
}

// Play starts playback. Ended stays terminal until a Seek or Load.
func (t *Tracker) Play() bool {
	return t.command(types.PlaybackPlaying)
}

// Pause pauses playback
func (t *Tracker) Pause() bool {
	return t.command(types.PlaybackPaused)
}

func (t *Tracker) command(target types.PlaybackStatus) bool {
	ok := false
	t.update(func() bool {
		switch t.state.Status {
		case types.PlaybackReady, types.PlaybackPlaying, types.PlaybackPaused:
			ok = true
			return t.setStatus(target)
		case types.PlaybackSeeking, types.PlaybackBuffering:
			ok = true
			return t.setResume(target)
		}
		return false
	})
	return ok
}

// Seek moves the position to seconds, clamped into [0, duration]. It is a
// no-op when the duration is unknown or seconds is not finite.
func (t *Tracker) Seek(seconds float64) bool {
	if !finite(seconds) {
		return false
	}

	ok := false
	t.update(func() bool {
		if !t.state.Status.HasPosition() || t.state.DurationSeconds <= 0 {
			return false
		}

		switch t.state.Status {
		case types.PlaybackPlaying:
			t.resumeTo = types.PlaybackPlaying
		case types.PlaybackSeeking, types.PlaybackBuffering:
			// keep the pending resume status
		default:
			t.resumeTo = types.PlaybackPaused
		}

		t.state.PositionSeconds = math.Min(math.Max(seconds, 0), t.state.DurationSeconds)
		t.state.Status = types.PlaybackSeeking
		ok = true
		return true
	})
	return ok
}

// SnapshotPosition returns the last known position
func (t *Tracker) SnapshotPosition() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.PositionSeconds
}

// State returns a snapshot of the playback state
func (t *Tracker) State() types.PlaybackState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Asset returns the loaded asset, zero when idle
func (t *Tracker) Asset() types.Asset {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.asset
}

// Subscribe returns a channel of state snapshots, delivered in order
func (t *Tracker) Subscribe() (int, <-chan types.PlaybackState) {
	return t.hub.Subscribe()
}

// Unsubscribe stops delivery and closes the subscriber's channel
func (t *Tracker) Unsubscribe(id int) {
	t.hub.Unsubscribe(id)
}

// Close releases every subscriber
func (t *Tracker) Close() {
	t.hub.Close()
}

// update runs fn under the write lock and publishes the new state when fn
// reports a change. Publishing under the lock keeps snapshots in order.
func (t *Tracker) update(fn func() bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := fn()
	if changed {
		t.hub.Publish(t.state)
	}
	return changed
}

// setStatus must hold lock
func (t *Tracker) setStatus(s types.PlaybackStatus) bool {
	if t.state.Status == s {
		return false
	}
	t.state.Status = s
	if s != types.PlaybackSeeking && s != types.PlaybackBuffering {
		t.resumeTo = ""
	}
	return true
}

// setResume must hold lock
func (t *Tracker) setResume(s types.PlaybackStatus) bool {
	t.resumeTo = s
	return false
}

// resumeStatus must hold lock
func (t *Tracker) resumeStatus() types.PlaybackStatus {
	if t.resumeTo == "" {
		return types.PlaybackPaused
	}
	return t.resumeTo
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
