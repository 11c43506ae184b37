package imagegen

import (
	"fmt"
	"strings"

	"scenecast/config"
)

// BuildPrompt combines the asset's style with the transcript. Long
// transcripts are cut to keep the prompt within what the model attends to.
func BuildPrompt(style, transcript string) string {
	text := strings.TrimSpace(transcript)
	if runes := []rune(text); len(runes) > config.MaxTranscriptPromptChars {
		text = string(runes[:config.MaxTranscriptPromptChars]) + "..."
	}

	style = strings.TrimSpace(style)
	if style == "" {
		return fmt.Sprintf("%s, %s", text, config.QualityTerms)
	}
	return fmt.Sprintf("%s, %s, %s", style, text, config.QualityTerms)
}
