package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	LLM     LLMConfig
	Extract ExtractConfig
	Batch   BatchConfig
	DB      DBConfig
}

// LLMConfig holds model-gateway configuration
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ExtractConfig holds pipeline thresholds and retry behavior
type ExtractConfig struct {
	MaxRetries     int     // extra attempts after the first primary call
	ConfidenceExit float64 // combined score that stops the retry loop early
	// ScrapMergeLimit caps the quantity value a sparse duplicate Rebut row may
	// contribute as a missing total_scrapped.
	ScrapMergeLimit float64
}

// BatchConfig holds batch-mode concurrency settings
type BatchConfig struct {
	Workers int
}

// DBConfig holds the sqlite store location
type DBConfig struct {
	Path string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.5-pro"),
			Timeout: getEnvAsDuration("GEMINI_TIMEOUT", 90*time.Second),
		},
		Extract: ExtractConfig{
			MaxRetries:      getEnvAsInt("EXTRACT_MAX_RETRIES", 2),
			ConfidenceExit:  getEnvAsFloat("EXTRACT_CONFIDENCE_EXIT", 80),
			ScrapMergeLimit: getEnvAsFloat("REBUT_SCRAP_MERGE_LIMIT", 50),
		},
		Batch: BatchConfig{
			Workers: getEnvAsInt("BATCH_WORKERS", 4),
		},
		DB: DBConfig{
			Path: getEnv("DB_PATH", "formscan.db"),
		},
	}
}

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
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
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrInvalidInput)
	}
	if c.Extract.MaxRetries < 0 {
		return NewAppError("CONFIG_ERROR", "EXTRACT_MAX_RETRIES must be >= 0", ErrInvalidInput)
	}
	return nil
}
