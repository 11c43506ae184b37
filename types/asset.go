package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Asset represents one long-form audio recording a listener can play.
// DurationSeconds is 0 while the duration is unknown.
type Asset struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	OriginalName    string    `json:"original_name"`
	StylePrompt     string    `json:"style_prompt"`
	DurationSeconds float64   `json:"duration_seconds"`
	Ready           bool      `json:"ready"`
	Source          string    `json:"source"` // local file path or remote URL
	UploadedAt      time.Time `json:"upload_timestamp"`
}

// DurationKnown reports whether the asset's duration has been determined.
func (a Asset) DurationKnown() bool {
	return a.DurationSeconds > 0
}

// Image is what an image synthesizer hands back: a handle to the generated
// picture plus the prompt that produced it.
type Image struct {
	Handle string `json:"handle"`
	Prompt string `json:"prompt"`
}

// GenerateID creates a stable ID from a URL, used for assets imported from feeds
func GenerateID(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])[:16]
}
