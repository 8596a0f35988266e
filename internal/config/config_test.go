package config

import (
	"testing"
	"time"

	"log/slog"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	clearConfigEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/growth")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Store.URL != "postgres://localhost/growth" {
		t.Errorf("unexpected store URL %q", cfg.Store.URL)
	}
	if cfg.Store.MigrationsDir != defaultMigrationsDir {
		t.Errorf("expected default migrations dir %q, got %q", defaultMigrationsDir, cfg.Store.MigrationsDir)
	}
	if cfg.API.BaseURL != defaultAPIBaseURL {
		t.Errorf("expected default API base URL %q, got %q", defaultAPIBaseURL, cfg.API.BaseURL)
	}
	if cfg.API.Timeout != defaultAPITimeout {
		t.Errorf("expected default API timeout %v, got %v", defaultAPITimeout, cfg.API.Timeout)
	}
	if cfg.Metrics.Addr != "" {
		t.Errorf("expected metrics disabled by default, got addr %q", cfg.Metrics.Addr)
	}
	if cfg.Logging.Level != slog.LevelInfo {
		t.Errorf("expected default log level %v, got %v", slog.LevelInfo, cfg.Logging.Level)
	}
	if cfg.Logging.Format != defaultLogFormat {
		t.Errorf("expected default log format %q, got %q", defaultLogFormat, cfg.Logging.Format)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	clearConfigEnv(t)

	overrides := map[string]string{
		"DATABASE_URL":                  "postgres://db/engine",
		"MIGRATIONS_DIR":                "/opt/migrations",
		"ECOX_API_BASE_URL":             "http://localhost:9999/api/v1",
		"ECOX_API_TIMEOUT_SECONDS":      "45",
		"STORE_CONNECT_TIMEOUT_SECONDS": "3",
		"METRICS_ADDR":                  ":9102",
		"LOG_LEVEL":                     "debug",
		"LOG_FORMAT":                    "text",
	}
	for key, value := range overrides {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Store.MigrationsDir != "/opt/migrations" {
		t.Errorf("expected overridden migrations dir, got %q", cfg.Store.MigrationsDir)
	}
	if cfg.API.BaseURL != "http://localhost:9999/api/v1" {
		t.Errorf("expected overridden API base URL, got %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 45*time.Second {
		t.Errorf("expected overridden API timeout, got %v", cfg.API.Timeout)
	}
	if cfg.Store.ConnectTimeout != 3*time.Second {
		t.Errorf("expected overridden connect timeout, got %v", cfg.Store.ConnectTimeout)
	}
	if cfg.Metrics.Addr != ":9102" {
		t.Errorf("expected overridden metrics addr, got %q", cfg.Metrics.Addr)
	}
	if cfg.Logging.Level != slog.LevelDebug {
		t.Errorf("expected debug log level, got %v", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected text log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad timeout":    {"ECOX_API_TIMEOUT_SECONDS": "-1"},
		"bad log level":  {"LOG_LEVEL": "verbose"},
		"bad log format": {"LOG_FORMAT": "xml"},
	}

	for name, envs := range cases {
		t.Run(name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv("DATABASE_URL", "postgres://db/engine")
			for key, value := range envs {
				t.Setenv(key, value)
			}

			if _, err := Load(); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"DATABASE_URL",
		"MIGRATIONS_DIR",
		"ECOX_API_BASE_URL",
		"ECOX_API_TIMEOUT_SECONDS",
		"STORE_CONNECT_TIMEOUT_SECONDS",
		"METRICS_ADDR",
		"OPENAI_API_KEY",
		"OPENAI_MODEL",
		"LOG_LEVEL",
		"LOG_FORMAT",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
