package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Queue    QueueConfig
	Retry    RetryConfig
	Drift    DriftConfig
	Provider ProviderConfig
	Archive  ArchiveConfig
	Metrics  MetricsConfig
}

// QueueConfig holds worker pool and admission configuration
type QueueConfig struct {
	WorkerPoolSize      int
	BackpressureLimit   int
	BatchMaxSize        int
	ProcessTimeout      time.Duration // whole-job budget per work item
	ProviderCallTimeout time.Duration // per provider invocation
}

// RetryConfig holds the per-stage retry policy parameters
type RetryConfig struct {
	MaxAttemptsPerStage int
	BaseBackoff         time.Duration
	BackoffMultiplier   float64
	MaxBackoff          time.Duration
	JitterFraction      float64
}

// DriftConfig holds accuracy-drift monitoring configuration
type DriftConfig struct {
	WindowSize         int
	AlertThreshold     float64
	MinWindowOccupancy int
	NumericTolerance   float64
	GoldDatasetPath    string
}

// ProviderConfig selects and configures the OCR/extraction providers
type ProviderConfig struct {
	OCRProvider        string // "auto" | "tesseract" | "plaintext"
	ExtractionProvider string // "openai" | "rules"
	TesseractLanguages string // comma-separated, e.g. "eng"
	OpenAIBaseURL      string
	OpenAIModel        string
	OpenAIAPIKey       string
	OpenAITemperature  float32
}

// ArchiveConfig selects where terminal job outcomes are persisted
type ArchiveConfig struct {
	Driver           string // "" (disabled) | "sqlite" | "postgres"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	Retention        time.Duration // terminal rows older than this are pruned; 0 keeps forever
}

// MetricsConfig holds the Prometheus exposition listener address
type MetricsConfig struct {
	Addr string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Queue: QueueConfig{
			WorkerPoolSize:      getEnvAsInt("WORKER_POOL_SIZE", 4),
			BackpressureLimit:   getEnvAsInt("QUEUE_BACKPRESSURE_LIMIT", 256),
			BatchMaxSize:        getEnvAsInt("BATCH_MAX_SIZE", 100),
			ProcessTimeout:      getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
			ProviderCallTimeout: getEnvAsDuration("PROVIDER_CALL_TIMEOUT", 45*time.Second),
		},
		Retry: RetryConfig{
			MaxAttemptsPerStage: getEnvAsInt("MAX_ATTEMPTS_PER_STAGE", 3),
			BaseBackoff:         time.Duration(getEnvAsInt("BASE_BACKOFF_MS", 250)) * time.Millisecond,
			BackoffMultiplier:   getEnvAsFloat64("BACKOFF_MULTIPLIER", 2.0),
			MaxBackoff:          time.Duration(getEnvAsInt("MAX_BACKOFF_MS", 10000)) * time.Millisecond,
			JitterFraction:      getEnvAsFloat64("JITTER_FRACTION", 0.2),
		},
		Drift: DriftConfig{
			WindowSize:         getEnvAsInt("DRIFT_WINDOW_SIZE", 100),
			AlertThreshold:     getEnvAsFloat64("DRIFT_ALERT_THRESHOLD", 0.80),
			MinWindowOccupancy: getEnvAsInt("DRIFT_MIN_WINDOW_OCCUPANCY", 20),
			NumericTolerance:   getEnvAsFloat64("NUMERIC_TOLERANCE", 0.01),
			GoldDatasetPath:    getEnv("DRIFT_GOLD_DATASET", ""),
		},
		Provider: ProviderConfig{
			OCRProvider:        getEnv("OCR_PROVIDER", "auto"),
			ExtractionProvider: getEnv("EXTRACTION_PROVIDER", "rules"),
			TesseractLanguages: getEnv("TESSERACT_LANGUAGES", "eng"),
			OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
			OpenAITemperature:  getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
		},
		Archive: ArchiveConfig{
			Driver:           getEnv("ARCHIVE_DRIVER", ""),
			DSN:              getEnv("ARCHIVE_DSN", ""),
			MaxConns:         getEnvAsInt32("ARCHIVE_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("ARCHIVE_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("ARCHIVE_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("ARCHIVE_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("ARCHIVE_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("ARCHIVE_STATEMENT_TIMEOUT", 0),
			Retention:        getEnvAsDuration("ARCHIVE_RETENTION", 24*time.Hour),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Queue.WorkerPoolSize <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKER_POOL_SIZE must be positive", nil)
	}
	if c.Retry.MaxAttemptsPerStage <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_ATTEMPTS_PER_STAGE must be positive", nil)
	}
	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction > 1 {
		return NewAppError("CONFIG_ERROR", "JITTER_FRACTION must be in [0,1]", nil)
	}
	if c.Drift.WindowSize <= 0 {
		return NewAppError("CONFIG_ERROR", "DRIFT_WINDOW_SIZE must be positive", nil)
	}
	if c.Drift.AlertThreshold < 0 || c.Drift.AlertThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "DRIFT_ALERT_THRESHOLD must be in [0,1]", nil)
	}
	if c.Provider.ExtractionProvider == "openai" && c.Provider.OpenAIAPIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required for the openai provider", nil)
	}
	if c.Archive.Driver != "" && c.Archive.DSN == "" {
		return NewAppError("CONFIG_ERROR", "ARCHIVE_DSN is required when ARCHIVE_DRIVER is set", nil)
	}
	return nil
}
