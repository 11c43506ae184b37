package tui

// UI Text Constants
const (
	TextTitle       = "🎧 Scenecast Player"
	TextLoading     = "⏳ Loading audiobook..."
	TextNoScene     = "No image yet. Press 'g' to illustrate this moment."
	TextFooter      = "space play/pause | ←/→ seek 10s | g generate | n/p next/prev image | q quit"
	TextFooterError = "Press 'q' or Ctrl+C to quit"
)
