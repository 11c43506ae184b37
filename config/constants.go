package config

import "time"

// Generation Constants
const (
	// LookbackSeconds is the length of audio transcribed before the requested timestamp
	LookbackSeconds = 30.0

	// DedupGranularitySeconds is the rounding applied to timestamps when merging duplicate requests
	DedupGranularitySeconds = 1.0

	// DefaultMaxInFlight limits the number of pipelines running simultaneously
	DefaultMaxInFlight = 3

	// RequestTTL is how long an unobserved terminal request is kept before the janitor drops it
	RequestTTL = 10 * time.Minute

	// DefaultGCSchedule is the cron schedule for the request janitor
	DefaultGCSchedule = "@every 1m"
)

// Stage Timeout Constants
const (
	ExtractTimeout    = 5 * time.Second
	TranscribeTimeout = 30 * time.Second
	SynthesizeTimeout = 90 * time.Second
	PersistTimeout    = 30 * time.Second
)

// Timeline Constants
const (
	// CollisionEpsilonSeconds is the distance under which a new artifact replaces an existing marker
	CollisionEpsilonSeconds = 1.0
)

// Audio Constants
const (
	// SampleRate and Channels match what Whisper expects
	SampleRate = 16000
	Channels   = 1

	// MaxUploadBytes is the largest accepted audio upload (500MB)
	MaxUploadBytes = 500 * 1024 * 1024
)

// AllowedAudioTypes lists the content types accepted on upload
var AllowedAudioTypes = []string{"audio/mpeg", "audio/mp3", "audio/mp4", "audio/x-m4a"}

// Prompt Constants
const (
	// MaxTranscriptPromptChars truncates the transcript inside the image prompt
	MaxTranscriptPromptChars = 200

	// QualityTerms are appended to every image prompt
	QualityTerms = "highly detailed, professional quality, artistic composition"
)

// Replicate Constants
const (
	ReplicateBaseURL = "https://api.replicate.com/v1"

	// ReplicateModelVersion is Stable Diffusion XL
	ReplicateModelVersion = "39ed52f2a78e934b3ba6e2a89f5b1c712de7dfea535525255b1aa35c5565e08b"

	ImageWidth         = 1024
	ImageHeight        = 1024
	InferenceSteps     = 20
	GuidanceScale      = 7.5
	Scheduler          = "K_EULER"
	PollInterval       = 2 * time.Second
	MaxPollAttempts    = 60
	ReplicateHTTPLimit = 30 * time.Second
)

// Transcription Constants
const (
	WhisperEndpoint = "https://api.openai.com/v1/audio/transcriptions"
	WhisperModel    = "whisper-1"
)

// Prompt refinement Constants
const (
	CohereChatModel = "command-r"
)

// Directory Constants
const (
	// AudioSubdir and ImagesSubdir live under the upload directory
	AudioSubdir  = "audio"
	ImagesSubdir = "images"
)
