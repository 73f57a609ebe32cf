package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	API       APIConfig
	Editor    EditorConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Tracing   TracingConfig
}

type APIConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type EditorConfig struct {
	OutputDir       string
	HistoryCapacity int
	CanvasEnabled   bool
	JPEGQuality     int
	MaxUploadBytes  int64
	MaxPixels       int
	SessionTTL      time.Duration
}

type QueueConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

// RedisOptions targets the same Redis as the queue, for the rate limiter.
func (q QueueConfig) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency int
	MetricsAddr string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type DatabaseConfig struct {
	// DSN selects the Postgres conversion store; empty keeps records in memory.
	DSN string
}

type RateLimitConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
	Header  string
}

type WebhookConfig struct {
	URL            string
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type TracingConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	SampleRatio  float64
}

// Load reads the process environment. A .env file in the working
// directory is applied first; variables already set win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		API: APIConfig{
			Addr:            env("PIXELEDIT_API_ADDR", ":8080"),
			ShutdownTimeout: envDuration("PIXELEDIT_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Editor: EditorConfig{
			OutputDir:       env("PIXELEDIT_OUTPUT_DIR", "flagged/output"),
			HistoryCapacity: envInt("PIXELEDIT_HISTORY_CAPACITY", 10),
			CanvasEnabled:   envBool("PIXELEDIT_CANVAS_ENABLED", true),
			JPEGQuality:     envInt("PIXELEDIT_JPEG_QUALITY", 90),
			MaxUploadBytes:  int64(envInt("PIXELEDIT_MAX_UPLOAD_BYTES", 32<<20)),
			MaxPixels:       envInt("PIXELEDIT_MAX_PIXELS", 64<<20),
			SessionTTL:      envDuration("PIXELEDIT_SESSION_TTL", 2*time.Hour),
		},
		Queue: QueueConfig{
			Enabled:       envBool("PIXELEDIT_QUEUE_ENABLED", false),
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("ASYNC_QUEUE", "default"),
		},
		Worker: WorkerConfig{
			Concurrency: envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MetricsAddr: env("WORKER_METRICS_ADDR", ":9091"),
		},
		Storage: StorageConfig{
			Endpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env("MINIO_BUCKET", "pixeledit-outputs"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled: envBool("RATE_LIMIT_ENABLED", false),
			Limit:   envInt("RATE_LIMIT_REQUESTS", 120),
			Window:  envDuration("RATE_LIMIT_WINDOW", time.Minute),
			Header:  env("RATE_LIMIT_SUBJECT_HEADER", "X-User-ID"),
		},
		Webhook: WebhookConfig{
			URL:            env("WEBHOOK_URL", ""),
			SigningSecret:  env("WEBHOOK_SIGNING_SECRET", ""),
			Timeout:        envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:    envInt("WEBHOOK_MAX_ATTEMPTS", 3),
			InitialBackoff: envDuration("WEBHOOK_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     envDuration("WEBHOOK_MAX_BACKOFF", 30*time.Second),
		},
		Tracing: TracingConfig{
			Exporter:     env("OTEL_TRACES_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:  envFloat("OTEL_TRACES_SAMPLER_RATIO", 1),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
