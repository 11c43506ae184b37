package types

import "time"

// RequestStatus represents the lifecycle of a generation request
type RequestStatus string

const (
	RequestPending      RequestStatus = "pending"
	RequestExtracting   RequestStatus = "extracting"
	RequestTranscribing RequestStatus = "transcribing"
	RequestSynthesizing RequestStatus = "synthesizing"
	RequestSucceeded    RequestStatus = "succeeded"
	RequestFailed       RequestStatus = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s RequestStatus) Terminal() bool {
	return s == RequestSucceeded || s == RequestFailed
}

// FailureKind classifies why a request ended in RequestFailed
type FailureKind string

const (
	FailureExtraction    FailureKind = "extraction_error"
	FailureTranscription FailureKind = "transcription_error"
	FailureSynthesis     FailureKind = "synthesis_error"
	FailureStorage       FailureKind = "storage_error"
	FailureTimeout       FailureKind = "timeout"
	FailureCanceled      FailureKind = "canceled"
	// FailureAssetUnloaded marks requests whose asset was unloaded before the
	// result could be registered; the result is dropped.
	FailureAssetUnloaded FailureKind = "asset_unloaded"
)

// ExtractionWindow is the span of audio, in seconds, fed to transcription.
type ExtractionWindow struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// GenerationRequest is a value snapshot of one image generation in flight
type GenerationRequest struct {
	RequestID          string           `json:"request_id"`
	AssetID            string           `json:"asset_id"`
	RequestedTimestamp float64          `json:"requested_timestamp"`
	Window             ExtractionWindow `json:"window"`
	Status             RequestStatus    `json:"status"`
	Failure            FailureKind      `json:"failure,omitempty"`
	Error              string           `json:"error,omitempty"`
	Artifact           *Artifact        `json:"artifact,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Artifact is one generated image bound to a timestamp on an asset.
// Artifacts are immutable once created.
type Artifact struct {
	ArtifactID       string    `json:"artifact_id"`
	AssetID          string    `json:"asset_id"`
	TimestampSeconds float64   `json:"timestamp_seconds"`
	TranscriptText   string    `json:"transcript_text"`
	ImagePromptText  string    `json:"image_prompt_text"`
	ImageHandle      string    `json:"image_handle"`
	ImageRef         string    `json:"image_ref,omitempty"` // stored location returned by the artifact store
	CreatedAt        time.Time `json:"created_at"`
}
