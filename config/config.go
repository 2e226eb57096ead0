package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the chat-import service.
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Logging   LoggingConfig
	Salebot   SalebotConfig
	Functions FunctionsConfig
	Importer  ImporterConfig
}

type DatabaseConfig struct {
	URL string
}

type ServerConfig struct {
	Port string
}

type LoggingConfig struct {
	Level string
}

// SalebotConfig configures the upstream chat-history provider.
type SalebotConfig struct {
	BaseURL string
	APIKey  string
	GroupID string
}

// FunctionsConfig configures the dual-backend function gateway. The primary
// backend carries its own static API key; the secondary is reached with the
// caller's session bearer token.
type FunctionsConfig struct {
	PrimaryBaseURL    string
	PrimaryAPIKey     string
	SecondaryBaseURL  string
	PrimaryRetries    int
	PrimaryRetryDelay time.Duration
	FallbackEnabled   bool
}

type ImporterConfig struct {
	ListID          string
	BatchSize       int64
	HistoryLimit    int64
	InsertChunkSize int
	CheckpointEvery int64
	InterCallDelay  time.Duration
}

// Load reads configuration from the environment, with .env support.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Salebot: SalebotConfig{
			BaseURL: getEnv("SALEBOT_BASE_URL", "https://chatter.salebot.pro"),
			APIKey:  os.Getenv("SALEBOT_API_KEY"),
			GroupID: os.Getenv("SALEBOT_GROUP_ID"),
		},
		Functions: FunctionsConfig{
			PrimaryBaseURL:    os.Getenv("FUNCTIONS_PRIMARY_URL"),
			PrimaryAPIKey:     os.Getenv("FUNCTIONS_PRIMARY_API_KEY"),
			SecondaryBaseURL:  os.Getenv("FUNCTIONS_SECONDARY_URL"),
			PrimaryRetries:    getEnvInt("FUNCTIONS_PRIMARY_RETRIES", 1),
			PrimaryRetryDelay: getEnvDuration("FUNCTIONS_PRIMARY_RETRY_DELAY", 500*time.Millisecond),
			FallbackEnabled:   getEnvBool("FUNCTIONS_FALLBACK_ENABLED", true),
		},
		Importer: ImporterConfig{
			ListID:          os.Getenv("SALEBOT_LIST_ID"),
			BatchSize:       int64(getEnvInt("IMPORT_BATCH_SIZE", 10)),
			HistoryLimit:    int64(getEnvInt("IMPORT_HISTORY_LIMIT", 2000)),
			InsertChunkSize: getEnvInt("IMPORT_INSERT_CHUNK_SIZE", 50),
			CheckpointEvery: int64(getEnvInt("IMPORT_CHECKPOINT_EVERY", 5)),
			InterCallDelay:  getEnvDuration("IMPORT_INTER_CALL_DELAY", 150*time.Millisecond),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces required secrets; a missing key is a configuration error
// and fatal at startup.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Salebot.APIKey == "" {
		return fmt.Errorf("SALEBOT_API_KEY is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
