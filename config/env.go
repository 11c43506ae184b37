package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration assembled from the environment
type Config struct {
	AppName     string
	Port        string
	DatabaseURL string
	UploadDir   string

	// S3 is optional; images are written under UploadDir when Bucket is empty
	S3Bucket       string
	S3Region       string
	S3Profile      string
	S3Prefix       string
	S3UsePathStyle bool

	// Redis is optional; events are not fanned out when RedisAddr is empty
	RedisAddr string
	RedisPass string
	RedisDB   int

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	OpenAIKey      string
	ReplicateToken string
	CohereKey      string

	MaxInFlight int
	Timeouts    StageTimeouts
	GCSchedule  string
	RequestTTL  time.Duration
}

// StageTimeouts bounds each adapter call of the generation pipeline
type StageTimeouts struct {
	Extract    time.Duration
	Transcribe time.Duration
	Synthesize time.Duration
	Persist    time.Duration
}

// DefaultTimeouts returns the stage budgets used when nothing is configured
func DefaultTimeouts() StageTimeouts {
	return StageTimeouts{
		Extract:    ExtractTimeout,
		Transcribe: TranscribeTimeout,
		Synthesize: SynthesizeTimeout,
		Persist:    PersistTimeout,
	}
}

// Load reads .env (if present) and the process environment
func Load() Config {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only
func FromEnv() Config {
	prefix := strings.TrimSpace(os.Getenv("S3_PREFIX"))
	if prefix != "" {
		prefix = strings.Trim(prefix, "/") + "/"
	}

	return Config{
		AppName:     getEnvOrDefault("APP_NAME", "AI Audiobook Image Generator"),
		Port:        getEnvOrDefault("PORT", "8000"),
		DatabaseURL: getEnvOrDefault("DATABASE_URL", "sqlite://./audiobooks.db"),
		UploadDir:   getEnvOrDefault("UPLOAD_DIR", "./uploads"),

		S3Bucket:       strings.TrimSpace(os.Getenv("S3_BUCKET")),
		S3Region:       strings.TrimSpace(os.Getenv("S3_REGION")),
		S3Profile:      strings.TrimSpace(os.Getenv("S3_PROFILE")),
		S3Prefix:       prefix,
		S3UsePathStyle: strings.EqualFold(strings.TrimSpace(os.Getenv("S3_USE_PATH_STYLE")), "true"),

		RedisAddr: strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPass: os.Getenv("REDIS_PASS"),
		RedisDB:   getIntOrDefault("REDIS_DB", 0),

		KafkaBrokers: strings.Split(getEnvOrDefault("KAFKA_BOOTSTRAP_SERVERS", "localhost:9093"), ","),
		KafkaTopic:   getEnvOrDefault("KAFKA_TOPIC_GENERATION_REQUESTS", "generation-requests"),
		KafkaGroupID: getEnvOrDefault("KAFKA_CONSUMER_GROUP_ID", "scenecast-consumer-group"),

		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		ReplicateToken: os.Getenv("REPLICATE_API_TOKEN"),
		CohereKey:      os.Getenv("COHERE_API_KEY"),

		MaxInFlight: getIntOrDefault("MAX_IN_FLIGHT", DefaultMaxInFlight),
		Timeouts: StageTimeouts{
			Extract:    getSecondsOrDefault("EXTRACT_TIMEOUT_SECONDS", ExtractTimeout),
			Transcribe: getSecondsOrDefault("TRANSCRIBE_TIMEOUT_SECONDS", TranscribeTimeout),
			Synthesize: getSecondsOrDefault("SYNTHESIZE_TIMEOUT_SECONDS", SynthesizeTimeout),
			Persist:    getSecondsOrDefault("PERSIST_TIMEOUT_SECONDS", PersistTimeout),
		},
		GCSchedule: getEnvOrDefault("GC_SCHEDULE", DefaultGCSchedule),
		RequestTTL: getSecondsOrDefault("REQUEST_TTL_SECONDS", RequestTTL),
	}
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func getSecondsOrDefault(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return defaultVal
}
