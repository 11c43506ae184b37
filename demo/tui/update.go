package tui

import (
	"fmt"

	"scenecast/types"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case TickMsg:
		return m.handleTick(msg)
	case LoadedMsg:
		return m.handleLoaded(msg)
	case StateMsg:
		return m.handleState(msg)
	case TimelineMsg:
		if msg.Err == nil {
			m.Timeline = msg.Entries
		}
		return m, nil
	case NearestMsg:
		if msg.Found {
			e := msg.Entry
			m.Current = &e
		} else {
			m.Current = nil
		}
		return m, nil
	case GeneratedMsg:
		return m.handleGenerated(msg)
	case RequestMsg:
		return m.handleRequest(msg)
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	}

	if !m.Loaded {
		return m, nil
	}

	switch msg.String() {
	case " ", "space":
		return m, togglePlay(m.Client, m.State.Status == types.PlaybackPlaying)
	case "left", "h":
		return m, seekTo(m.Client, m.State.PositionSeconds-seekStep)
	case "right", "l":
		return m, seekTo(m.Client, m.State.PositionSeconds+seekStep)
	case "g", "G":
		m = m.AddLog(fmt.Sprintf("Requesting image at %s", formatClock(m.State.PositionSeconds)))
		return m, generate(m.Client)
	case "n", "p":
		dir := 1
		if msg.String() == "p" {
			dir = -1
		}
		if t, ok := markerFrom(m.Timeline, m.State.PositionSeconds, dir); ok {
			return m, seekTo(m.Client, t)
		}
	}
	return m, nil
}

// handleTick advances the playhead while playing and polls everything else
func (m Model) handleTick(msg TickMsg) (tea.Model, tea.Cmd) {
	elapsed := msg.Time.Sub(m.lastTick)
	if m.lastTick.IsZero() || elapsed < 0 {
		elapsed = 0
	}
	m.lastTick = msg.Time

	cmds := []tea.Cmd{tickCmd()}
	if !m.Loaded {
		return m, tea.Batch(cmds...)
	}

	if m.State.Status == types.PlaybackPlaying {
		pos, ended := advance(m.State, elapsed)
		m.State.PositionSeconds = pos
		cmds = append(cmds, reportPosition(m.Client, pos, ended))
	} else {
		cmds = append(cmds, pollState(m.Client))
	}

	cmds = append(cmds,
		fetchTimeline(m.Client, m.Asset.ID),
		fetchNearest(m.Client, m.Asset.ID, m.State.PositionSeconds),
	)
	for _, id := range m.Pending {
		cmds = append(cmds, pollRequest(m.Client, id))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleLoaded(msg LoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Err = msg.Err
		return m, nil
	}
	m.Asset = msg.Asset
	m.Loaded = true
	m.Connected = true
	m.Err = nil
	m = m.AddLog(fmt.Sprintf("Loaded %s", displayName(msg.Asset)))
	return m, tea.Batch(pollState(m.Client), fetchTimeline(m.Client, msg.Asset.ID))
}

func (m Model) handleState(msg StateMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Err = msg.Err
		m.Connected = false
		return m, nil
	}
	m.Connected = true
	m.Err = nil

	// Another client loaded a different asset
	if msg.State.AssetID != "" && msg.State.AssetID != m.Asset.ID {
		m.Asset = types.Asset{ID: msg.State.AssetID}
		m.Timeline = nil
		m.Current = nil
		m.Pending = nil
	}
	m.State = msg.State
	return m, nil
}

func (m Model) handleGenerated(msg GeneratedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m = m.AddLog(fmt.Sprintf("Generate failed: %v", msg.Err))
		return m, nil
	}
	if msg.Generated.Duplicate {
		m = m.AddLog(fmt.Sprintf("Already generating (%s)", shortID(msg.Generated.RequestID)))
	} else {
		m = m.AddLog(fmt.Sprintf("Request %s queued", shortID(msg.Generated.RequestID)))
	}
	return m.addPending(msg.Generated.RequestID), nil
}

func (m Model) handleRequest(msg RequestMsg) (tea.Model, tea.Cmd) {
	id := msg.Request.RequestID
	if msg.Err != nil {
		// Finished requests are forgotten by the server once read
		m = m.removePending(id)
		return m, nil
	}

	switch msg.Request.Status {
	case types.RequestSucceeded:
		m = m.AddLog(fmt.Sprintf("✅ Image ready at %s", formatClock(msg.Request.RequestedTimestamp)))
		m = m.removePending(id)
		return m, fetchTimeline(m.Client, m.Asset.ID)
	case types.RequestFailed:
		m = m.AddLog(fmt.Sprintf("❌ Request %s failed: %s", shortID(id), msg.Request.Failure))
		m = m.removePending(id)
	}
	return m, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func displayName(a types.Asset) string {
	if a.OriginalName != "" {
		return a.OriginalName
	}
	return a.ID
}
