package tui

import (
	"fmt"
	"strings"

	"scenecast/types"
)

// View implements tea.Model interface
func (m Model) View() string {
	var b strings.Builder

	// Title
	b.WriteString(headerStyle.Render(TextTitle))
	b.WriteString("\n\n")

	if !m.Loaded {
		if m.Err != nil {
			b.WriteString(alertStyle.Render(fmt.Sprintf("❌ Error: %v", m.Err)))
			b.WriteString("\n\n")
			b.WriteString(mutedStyle.Render(TextFooterError))
			return b.String()
		}
		b.WriteString(mutedStyle.Render(TextLoading))
		return b.String()
	}

	// Now playing
	b.WriteString(nowPlayingStyle.Render(displayName(m.Asset)))
	b.WriteString("  ")
	b.WriteString(m.statusText())
	b.WriteString("\n\n")

	// Timeline
	b.WriteString(trackStyle.Render(renderBar(trackWidth, m.State.DurationSeconds, m.State.PositionSeconds, m.Timeline)))
	b.WriteString("\n")
	clock := formatClock(m.State.PositionSeconds)
	if m.State.DurationSeconds > 0 {
		clock += " / " + formatClock(m.State.DurationSeconds)
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%s   %d image(s)", clock, len(m.Timeline))))
	b.WriteString("\n\n")

	// Current scene
	b.WriteString(sceneStyle.Render(m.sceneText()))
	b.WriteString("\n\n")

	if len(m.Pending) > 0 {
		b.WriteString(playingStyle.Render(fmt.Sprintf("🎨 %d request(s) in progress", len(m.Pending))))
		b.WriteString("\n\n")
	}

	// Logs
	if len(m.Logs) > 0 {
		b.WriteString(mutedStyle.Render("📝 Recent Activity:"))
		b.WriteString("\n")
		for _, line := range m.Logs {
			b.WriteString(activityStyle.Render("   " + line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.Err != nil {
		b.WriteString(alertStyle.Render(fmt.Sprintf("❌ %v", m.Err)))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render(TextFooter))

	return b.String()
}

func (m Model) statusText() string {
	if !m.Connected {
		return alertStyle.Render("❌ Not connected")
	}
	switch m.State.Status {
	case types.PlaybackPlaying:
		return playingStyle.Render("▶ playing")
	case types.PlaybackPaused, types.PlaybackReady:
		return mutedStyle.Render("⏸ paused")
	case types.PlaybackEnded:
		return mutedStyle.Render("⏹ ended")
	}
	return mutedStyle.Render(string(m.State.Status))
}

func (m Model) sceneText() string {
	if m.Current == nil {
		return mutedStyle.Render(TextNoScene)
	}
	text := m.Current.TranscriptText
	if r := []rune(text); len(r) > 160 {
		text = string(r[:160]) + "..."
	}
	return fmt.Sprintf("🖼  %s  @ %s\n\n%s",
		m.Current.ImageRef,
		formatClock(m.Current.TimestampSeconds),
		text,
	)
}
