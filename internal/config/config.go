package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel slog.Level

	// Chat transport
	BotToken string

	// Yandex Cloud: OCR and YandexGPT
	YandexAPIKey   string
	YandexFolderID string
	YandexModel    string
	YandexModelURI string
	YandexAPIURL   string
	YandexOCRURL   string

	// OpenAI-compatible gateway
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterModel   string

	// Generation
	Temperature float64
	MaxTokens   int
	HTTPTimeout time.Duration

	// Map publishing
	BlobBackend   string
	BlobDir       string
	PublicBaseURL string
	MapFormat     string
	S3AccessKeyID string
	S3SecretKey   string
	S3Bucket      string
	S3Endpoint    string
	S3Region      string
	WebsiteHost   string

	// Session and history
	SessionBackend string
	RedisURL       string
	SQLitePath     string
	StateTTL       time.Duration

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first without overriding variables that
// are already set.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:     envOr("PORT", "8090"),
		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),

		BotToken: os.Getenv("BOT_TOKEN"),

		YandexAPIKey:   os.Getenv("YANDEX_API_KEY"),
		YandexFolderID: os.Getenv("YANDEX_FOLDER_ID"),
		YandexModel:    envOr("YANDEX_MODEL", "yandexgpt"),
		YandexModelURI: os.Getenv("YANDEX_URL"),
		YandexAPIURL:   envOr("YANDEX_API_URL", "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"),
		YandexOCRURL:   envOr("YANDEX_OCR_URL", "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"),

		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: envOr("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:   envOr("OPENROUTER_DEFAULT_MODEL", "openai/gpt-4.1-mini"),

		Temperature: envFloat("LLM_TEMPERATURE", 0.3),
		MaxTokens:   envInt("LLM_MAX_TOKENS", 1024),
		HTTPTimeout: envDuration("HTTP_TIMEOUT", 120*time.Second),

		BlobBackend:   strings.ToLower(envOr("BLOB_BACKEND", "s3")),
		BlobDir:       envOr("BLOB_DIR", "./data/maps"),
		PublicBaseURL: envOr("PUBLIC_BASE_URL", "http://localhost:8090/files"),
		MapFormat:     strings.ToLower(envOr("MAP_FORMAT", "markdown")),
		S3AccessKeyID: os.Getenv("YC_ACCESS_KEY_ID"),
		S3SecretKey:   os.Getenv("YC_SECRET_ACCESS_KEY"),
		S3Bucket:      envOr("YC_BUCKET_NAME", "webapp-tgmini"),
		S3Endpoint:    envOr("YC_S3_ENDPOINT", "https://storage.yandexcloud.net"),
		S3Region:      envOr("YC_REGION", "ru-central1"),
		WebsiteHost:   envOr("YC_WEBSITE_HOST", "webapp-tgmini.website.yandexcloud.net"),

		SessionBackend: strings.ToLower(envOr("SESSION_BACKEND", "memory")),
		RedisURL:       envOr("REDIS_URL", "redis://localhost:6379/0"),
		SQLitePath:     envOr("SQLITE_PATH", "./data/docmap.db"),
		StateTTL:       envDuration("STATE_TTL", 24*time.Hour),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 20971520), // 20MB, the Bot API download cap

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 120 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20971520
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate checks the keys the configured backends need. The bot token is
// checked by the bot command, not here.
func (c Config) Validate() error {
	var errs []error
	if c.YandexAPIKey == "" {
		errs = append(errs, errors.New("YANDEX_API_KEY is required"))
	}
	if c.YandexFolderID == "" && c.YandexModelURI == "" {
		errs = append(errs, errors.New("YANDEX_FOLDER_ID or YANDEX_URL is required"))
	}

	switch c.BlobBackend {
	case "s3":
		if c.S3AccessKeyID == "" || c.S3SecretKey == "" {
			errs = append(errs, errors.New("YC_ACCESS_KEY_ID and YC_SECRET_ACCESS_KEY are required for BLOB_BACKEND=s3"))
		}
	case "fs":
	default:
		errs = append(errs, fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend))
	}

	switch c.MapFormat {
	case "markdown", "html":
	default:
		errs = append(errs, fmt.Errorf("unknown MAP_FORMAT %q", c.MapFormat))
	}

	switch c.SessionBackend {
	case "memory", "redis", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend))
	}

	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv(key))); err != nil {
		return fallback
	}
	return level
}
