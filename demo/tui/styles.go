package tui

import "github.com/charmbracelet/lipgloss"

// Player palette. Each color has a light and a dark terminal variant.
var (
	inkColor   = lipgloss.AdaptiveColor{Light: "#3B2F2F", Dark: "#EDE3D1"}
	amberColor = lipgloss.AdaptiveColor{Light: "#B5651D", Dark: "#F4A259"}
	sageColor  = lipgloss.AdaptiveColor{Light: "#3D7A5A", Dark: "#8CC7A1"}
	fadedColor = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C6C6C"}
	alertColor = lipgloss.AdaptiveColor{Light: "#B3261E", Dark: "#FF6F61"}
)

// trackWidth is the width of the timeline track in cells
const trackWidth = 60

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true).
			Foreground(amberColor).
			MarginBottom(1)

	nowPlayingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(inkColor)

	playingStyle = lipgloss.NewStyle().Foreground(sageColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(fadedColor)
	trackStyle   = lipgloss.NewStyle().Foreground(amberColor)

	alertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(alertColor)

	// scene card: a rule down the left edge instead of a full box
	sceneStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(amberColor).
			PaddingLeft(2).
			Width(trackWidth)

	activityStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(fadedColor)
)
