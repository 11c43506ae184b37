package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"scenecast/demo/client"
	"scenecast/types"

	tea "github.com/charmbracelet/bubbletea"
)

// maxLogs bounds the activity log
const maxLogs = 6

// Model is the player. It stands in for the audio element: while the
// session is playing it advances the playhead locally and reports it.
type Model struct {
	Client  *client.Client
	AssetID string

	Asset    types.Asset
	State    types.PlaybackState
	Timeline []client.TimelineEntry
	Current  *client.TimelineEntry
	Pending  []string
	Logs     []string
	Err      error

	// Connection status
	Connected bool
	Loaded    bool

	lastTick time.Time
}

// NewModel creates a player for assetID; an empty id loads the newest asset
func NewModel(baseURL, assetID string) Model {
	return Model{
		Client:  client.NewClient(baseURL),
		AssetID: assetID,
		Logs:    make([]string, 0, maxLogs),
	}
}

// Init implements tea.Model interface
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadAsset(m.Client, m.AssetID),
		tickCmd(),
	)
}

// AddLog appends a timestamped line, keeping the most recent few
func (m Model) AddLog(msg string) Model {
	line := fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), msg)
	logs := append(append([]string(nil), m.Logs...), line)
	if len(logs) > maxLogs {
		logs = logs[len(logs)-maxLogs:]
	}
	m.Logs = logs
	return m
}

// addPending tracks a request id once
func (m Model) addPending(id string) Model {
	for _, p := range m.Pending {
		if p == id {
			return m
		}
	}
	m.Pending = append(append([]string(nil), m.Pending...), id)
	return m
}

func (m Model) removePending(id string) Model {
	out := make([]string, 0, len(m.Pending))
	for _, p := range m.Pending {
		if p != id {
			out = append(out, p)
		}
	}
	m.Pending = out
	return m
}

// markerFrom returns the first marker after pos (dir > 0) or the last one
// before it (dir < 0). Markers within half a second of pos are skipped so
// repeated presses keep moving.
func markerFrom(entries []client.TimelineEntry, pos float64, dir int) (float64, bool) {
	const slack = 0.5
	if dir > 0 {
		for _, e := range entries {
			if e.TimestampSeconds > pos+slack {
				return e.TimestampSeconds, true
			}
		}
		return 0, false
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].TimestampSeconds < pos-slack {
			return entries[i].TimestampSeconds, true
		}
	}
	return 0, false
}

// advance moves a playing head forward by elapsed, reporting whether the
// end was reached
func advance(state types.PlaybackState, elapsed time.Duration) (float64, bool) {
	pos := state.PositionSeconds + elapsed.Seconds()
	if state.DurationSeconds > 0 && pos >= state.DurationSeconds {
		return state.DurationSeconds, true
	}
	return pos, false
}

// formatClock renders seconds as m:ss, or h:mm:ss for long books
func formatClock(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h, mnt, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mnt, s)
	}
	return fmt.Sprintf("%d:%02d", mnt, s)
}

// renderBar draws the playhead and markers on a track of width cells
func renderBar(width int, duration, pos float64, markers []client.TimelineEntry) string {
	if width <= 0 {
		return ""
	}
	cells := []rune(strings.Repeat("─", width))
	if duration <= 0 {
		return string(cells)
	}

	cell := func(t float64) int {
		i := int(t / duration * float64(width-1))
		return max(0, min(width-1, i))
	}
	for _, e := range markers {
		cells[cell(e.TimestampSeconds)] = '◆'
	}
	cells[cell(pos)] = '●'
	return string(cells)
}
