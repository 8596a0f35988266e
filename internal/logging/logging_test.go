package logging

import (
	"testing"

	"log/slog"

	"github.com/ecoxlabs/growthworker/internal/config"
)

func TestNewFormats(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		logger, err := New(config.LoggingConfig{Level: slog.LevelInfo, Format: format})
		if err != nil {
			t.Fatalf("New(%q) returned error: %v", format, err)
		}
		if logger == nil {
			t.Fatalf("New(%q) returned nil logger", format)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(config.LoggingConfig{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestForAccount(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: slog.LevelInfo, Format: "json"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if got := ForAccount(logger, "alpha"); got == nil {
		t.Fatal("ForAccount returned nil")
	}
}
