// Package config assembles the pipeline's configuration from environment
// variables. Grounded on the teacher's internal/config loader: a single
// typed Config struct, godotenv.Overload() so a repo-local .env wins in
// development, and explicit os.Getenv reads with documented fallbacks
// rather than a flags/viper layer — the closed environment-variable list
// in spec.md §6 (+ SPEC_FULL.md §6.9) is the only configuration surface.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DatabaseConfig configures the sole relational backend (pgx/pgxpool).
type DatabaseConfig struct {
	ConnectionURL string
}

// ObjectStoreConfig configures the S3-compatible object store.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// S3SSEConfig configures server-side encryption for objects written to
// the S3-compatible backend.
type S3SSEConfig struct {
	Mode     string // "" | "sse-s3" | "sse-kms"
	KMSKeyID string
}

// S3Config is the internal/objectstore.S3Store construction surface,
// derived from ObjectStoreConfig (SPEC_FULL.md §6.2).
type S3Config struct {
	Endpoint              string
	AccessKey             string
	SecretKey             string
	Region                string
	Bucket                string
	Prefix                string
	UsePathStyle          bool
	TLSInsecureSkipVerify bool
	SSE                   S3SSEConfig
}

// S3 derives an S3Config from ObjectStoreConfig for internal/objectstore.
// A non-empty Endpoint implies an S3-compatible service (e.g. MinIO),
// which requires path-style addressing; real AWS S3 leaves Endpoint unset.
func (c ObjectStoreConfig) S3() S3Config {
	return S3Config{
		Endpoint:     c.Endpoint,
		AccessKey:    c.AccessKey,
		SecretKey:    c.SecretKey,
		Region:       c.Region,
		Bucket:       c.Bucket,
		UsePathStyle: c.Endpoint != "",
	}
}

// EmbeddingConfig configures the batched embedding HTTP client.
type EmbeddingConfig struct {
	BaseURL        string
	Path           string
	Model          string
	Dimension      int
	APIKey         string
	APIHeader      string
	Headers        map[string]string
	TimeoutSeconds int
}

// VisionConfig configures the vision+OCR provider.
type VisionConfig struct {
	Provider string // anthropic | openai | google
	Model    string
	APIKey   string
	BaseURL  string
	EnableOCR bool
}

// ScrapeConfig configures the dual-backend link enrichment client.
type ScrapeConfig struct {
	TimeoutSeconds int
	UserAgent      string
	PreferPrimary  bool
}

// FeatureToggles mirrors the ENABLE_* environment variables in spec.md §6.
type FeatureToggles struct {
	ImageContext          bool
	ContextExtraction     bool
	ErrorCodeExtraction   bool
	ProductExtraction     bool
	ContextEmbeddings     bool
	VideoTranscription    bool
}

// Limits mirrors the numeric caps in spec.md §6.
type Limits struct {
	LLMMaxPages                      int
	MaxMediaItemsPerBatch            int
	ContextExtractionTimeoutSeconds  int
	EmbeddingGenerationTimeoutSeconds int
}

// DriverConfig configures the Pipeline Driver's filesystem watch.
type DriverConfig struct {
	InputDir     string
	ProcessedDir string
}

// TranscribeConfig configures the optional whisper.cpp video transcription
// enrichment (SPEC_FULL.md §6.6).
type TranscribeConfig struct {
	ModelPath string
}

// SchedulerConfig holds the per-stage worker-pool sizes (spec.md §4.2).
type SchedulerConfig struct {
	Workers map[string]int
}

// DefaultStageWorkers mirrors the suggested defaults table in spec.md §4.2.
var DefaultStageWorkers = map[string]int{
	"upload":               2,
	"text_extraction":      3,
	"table_extraction":     2,
	"image_processing":     2,
	"classification":       2,
	"parts_extraction":     2,
	"series_detection":     2,
	"embedding_and_search": 2,
}

// RetryConfig holds one RetryPolicy (spec.md §3/§4.8) per external service.
type RetryConfig struct {
	Policies map[string]ServiceRetryPolicy
}

// ServiceRetryPolicy is the per-service backoff policy.
type ServiceRetryPolicy struct {
	MaxRetries       int
	BaseDelaySeconds float64
	MaxDelaySeconds  float64
	ExponentialBase  float64
	JitterEnabled    bool
}

// DefaultRetryPolicy matches spec.md §4.8's policy shape with conservative
// defaults; RETRY_<SERVICE>_* env vars override per service.
var DefaultRetryPolicy = ServiceRetryPolicy{
	MaxRetries:       3,
	BaseDelaySeconds: 1,
	MaxDelaySeconds:  30,
	ExponentialBase:  2,
	JitterEnabled:    true,
}

// RetryableServices is the closed set from spec.md §3's RetryPolicy entity.
var RetryableServices = []string{"scrape", "database", "embedder", "vision", "object_store"}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

// VectorBackend selects the ANN index backing chunk/image embeddings.
type VectorBackend string

const (
	VectorBackendPostgres VectorBackend = "postgres"
	VectorBackendQdrant   VectorBackend = "qdrant"
)

// SearchBackend selects the lexical full-text search backend.
type SearchBackend string

const (
	SearchBackendPostgres SearchBackend = "postgres"
)

// SearchConfig configures the vector + full-text search backends
// (SPEC_FULL.md §6.7).
type SearchConfig struct {
	VectorBackend VectorBackend
	QdrantAddr    string
	SearchBackend SearchBackend
}

// DedupeCacheConfig configures the optional Redis fast-path in front of
// the authoritative Postgres Dedup Index (SPEC_FULL.md §6.8).
type DedupeCacheConfig struct {
	RedisAddr string
	TTLSeconds int
}

// LLMProviderConfig selects and authenticates the first-party SDK shared
// by the Vision Client and the optional SDK-backed embedding path
// (SPEC_FULL.md §6.3/§6.4).
type LLMProviderConfig struct {
	Provider       string // anthropic | openai | google
	AnthropicKey   string
	OpenAIKey      string
	GoogleKey      string
}

// Config is the complete, closed configuration surface of the pipeline.
type Config struct {
	LogLevel  string
	LogPath   string

	Database     DatabaseConfig
	ObjectStore  ObjectStoreConfig
	Embedding    EmbeddingConfig
	Vision       VisionConfig
	Scrape       ScrapeConfig
	Features     FeatureToggles
	Limits       Limits
	Driver       DriverConfig
	Transcribe   TranscribeConfig
	Scheduler    SchedulerConfig
	Retry        RetryConfig
	Telemetry    TelemetryConfig
	Search       SearchConfig
	DedupeCache  DedupeCacheConfig
	LLMProvider  LLMProviderConfig
}

// Load reads configuration from the environment, using Overload so a
// repository-local .env deterministically wins over inherited OS
// environment in development — matching the teacher's loader.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{}
	cfg.LogLevel = firstNonEmpty(os.Getenv("LOG_LEVEL"), "info")
	cfg.LogPath = strings.TrimSpace(os.Getenv("LOG_PATH"))

	cfg.Database.ConnectionURL = strings.TrimSpace(os.Getenv("DATABASE_CONNECTION_URL"))

	cfg.ObjectStore.Endpoint = strings.TrimSpace(os.Getenv("OBJECT_STORAGE_ENDPOINT"))
	cfg.ObjectStore.AccessKey = strings.TrimSpace(os.Getenv("OBJECT_STORAGE_ACCESS_KEY"))
	cfg.ObjectStore.SecretKey = strings.TrimSpace(os.Getenv("OBJECT_STORAGE_SECRET_KEY"))
	cfg.ObjectStore.Region = firstNonEmpty(os.Getenv("OBJECT_STORAGE_REGION"), "us-east-1")
	cfg.ObjectStore.Bucket = firstNonEmpty(os.Getenv("OBJECT_STORAGE_BUCKET"), "manuals")
	cfg.ObjectStore.UseSSL = boolFromEnv("OBJECT_STORAGE_USE_SSL", true)

	cfg.Embedding.BaseURL = strings.TrimSpace(os.Getenv("EMBEDDING_BASE_URL"))
	cfg.Embedding.Path = firstNonEmpty(os.Getenv("EMBEDDING_PATH"), "/v1/embeddings")
	cfg.Embedding.Model = strings.TrimSpace(os.Getenv("EMBEDDING_MODEL"))
	cfg.Embedding.Dimension = intFromEnv("EMBEDDING_DIMENSION", 1536)
	cfg.Embedding.APIKey = strings.TrimSpace(os.Getenv("EMBEDDING_API_KEY"))
	cfg.Embedding.APIHeader = firstNonEmpty(os.Getenv("EMBEDDING_API_HEADER"), "Authorization")
	cfg.Embedding.TimeoutSeconds = intFromEnv("EMBEDDING_GENERATION_TIMEOUT_SECONDS", 30)

	cfg.Vision.Provider = firstNonEmpty(os.Getenv("LLM_PROVIDER"), "openai")
	cfg.Vision.Model = strings.TrimSpace(os.Getenv("VISION_MODEL"))
	cfg.Vision.EnableOCR = boolFromEnv("ENABLE_OCR", false)

	cfg.Scrape.TimeoutSeconds = intFromEnv("CONTEXT_EXTRACTION_TIMEOUT_SECONDS", 30)
	cfg.Scrape.UserAgent = firstNonEmpty(os.Getenv("SCRAPE_USER_AGENT"), "docpipeline/1.0")
	cfg.Scrape.PreferPrimary = boolFromEnv("SCRAPE_PREFER_PRIMARY", true)

	cfg.Features.ImageContext = boolFromEnv("ENABLE_IMAGE_CONTEXT", true)
	cfg.Features.ContextExtraction = boolFromEnv("ENABLE_CONTEXT_EXTRACTION", true)
	cfg.Features.ErrorCodeExtraction = boolFromEnv("ENABLE_ERROR_CODE_EXTRACTION", true)
	cfg.Features.ProductExtraction = boolFromEnv("ENABLE_PRODUCT_EXTRACTION", true)
	cfg.Features.ContextEmbeddings = boolFromEnv("ENABLE_CONTEXT_EMBEDDINGS", true)
	cfg.Features.VideoTranscription = boolFromEnv("ENABLE_VIDEO_TRANSCRIPTION", false)

	cfg.Limits.LLMMaxPages = intFromEnv("LLM_MAX_PAGES", 50)
	cfg.Limits.MaxMediaItemsPerBatch = intFromEnv("MAX_MEDIA_ITEMS_PER_BATCH", 8)
	cfg.Limits.ContextExtractionTimeoutSeconds = intFromEnv("CONTEXT_EXTRACTION_TIMEOUT_SECONDS", 30)
	cfg.Limits.EmbeddingGenerationTimeoutSeconds = intFromEnv("EMBEDDING_GENERATION_TIMEOUT_SECONDS", 30)

	cfg.Driver.InputDir = firstNonEmpty(os.Getenv("INPUT_DIR"), "./input")
	cfg.Driver.ProcessedDir = firstNonEmpty(os.Getenv("PROCESSED_DIR"), "./processed")

	cfg.Transcribe.ModelPath = strings.TrimSpace(os.Getenv("WHISPER_MODEL_PATH"))

	cfg.Scheduler.Workers = make(map[string]int, len(DefaultStageWorkers))
	for stage, def := range DefaultStageWorkers {
		envKey := "WORKERS_" + strings.ToUpper(stage)
		cfg.Scheduler.Workers[stage] = intFromEnv(envKey, def)
	}

	cfg.Retry.Policies = make(map[string]ServiceRetryPolicy, len(RetryableServices))
	for _, svc := range RetryableServices {
		prefix := "RETRY_" + strings.ToUpper(svc) + "_"
		cfg.Retry.Policies[svc] = ServiceRetryPolicy{
			MaxRetries:       intFromEnv(prefix+"MAX_RETRIES", DefaultRetryPolicy.MaxRetries),
			BaseDelaySeconds: floatFromEnv(prefix+"BASE_DELAY_SECONDS", DefaultRetryPolicy.BaseDelaySeconds),
			MaxDelaySeconds:  floatFromEnv(prefix+"MAX_DELAY_SECONDS", DefaultRetryPolicy.MaxDelaySeconds),
			ExponentialBase:  DefaultRetryPolicy.ExponentialBase,
			JitterEnabled:    DefaultRetryPolicy.JitterEnabled,
		}
	}

	cfg.Telemetry.OTLPEndpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	cfg.Telemetry.ServiceName = firstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), "docpipeline")

	cfg.Search.VectorBackend = VectorBackend(firstNonEmpty(os.Getenv("VECTOR_BACKEND"), string(VectorBackendPostgres)))
	cfg.Search.QdrantAddr = strings.TrimSpace(os.Getenv("QDRANT_ADDR"))
	cfg.Search.SearchBackend = SearchBackend(firstNonEmpty(os.Getenv("SEARCH_BACKEND"), string(SearchBackendPostgres)))

	cfg.DedupeCache.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.DedupeCache.TTLSeconds = intFromEnv("REDIS_DEDUPE_TTL_SECONDS", 3600)

	cfg.LLMProvider.Provider = firstNonEmpty(os.Getenv("LLM_PROVIDER"), "openai")
	cfg.LLMProvider.AnthropicKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	cfg.LLMProvider.OpenAIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	cfg.LLMProvider.GoogleKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))

	if cfg.Embedding.Dimension <= 0 {
		return cfg, fmt.Errorf("config: EMBEDDING_DIMENSION must be positive, got %d", cfg.Embedding.Dimension)
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatFromEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func boolFromEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}
