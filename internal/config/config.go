package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
// Everything the engine treats as per-run tunable (batch sizes, delays,
// discovery) lives in the store instead; this covers only process wiring.
type Config struct {
	Store   StoreConfig
	API     APIConfig
	Metrics MetricsConfig
	Suggest SuggestConfig
	Logging LoggingConfig
}

// StoreConfig holds the connection parameters for the account/config store.
type StoreConfig struct {
	URL            string
	MigrationsDir  string
	ConnectTimeout time.Duration
}

// APIConfig holds parameters for the remote growth-platform API.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// MetricsConfig controls the optional Prometheus exposition listener. An
// empty Addr disables it entirely.
type MetricsConfig struct {
	Addr string
}

// SuggestConfig configures the optional seed-target suggester. An empty
// APIKey disables the suggester.
type SuggestConfig struct {
	APIKey string
	Model  string
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

const (
	defaultAPIBaseURL    = "https://api.ecox.network/api/v1"
	defaultAPITimeout    = 30 * time.Second
	defaultMigrationsDir = "./migrations"
	defaultConnTimeout   = 10 * time.Second

	defaultLogFormat = "json"
)

// Load reads configuration from environment variables, applying defaults
// when values are not provided. DATABASE_URL is the only required setting:
// nothing can proceed without the store.
func Load() (Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := Config{
		Store: StoreConfig{
			URL:            dbURL,
			MigrationsDir:  getEnv("MIGRATIONS_DIR", defaultMigrationsDir),
			ConnectTimeout: defaultConnTimeout,
		},
		API: APIConfig{
			BaseURL: getEnv("ECOX_API_BASE_URL", defaultAPIBaseURL),
			Timeout: defaultAPITimeout,
		},
		Metrics: MetricsConfig{
			Addr: os.Getenv("METRICS_ADDR"),
		},
		Suggest: SuggestConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  os.Getenv("OPENAI_MODEL"),
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
	}

	if v := os.Getenv("ECOX_API_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ECOX_API_TIMEOUT_SECONDS: %w", err)
		}
		cfg.API.Timeout = d
	}

	if v := os.Getenv("STORE_CONNECT_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid STORE_CONNECT_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Store.ConnectTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
