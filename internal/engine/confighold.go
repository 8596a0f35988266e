package engine

import (
	"sync/atomic"

	"github.com/ecoxlabs/growthworker/internal/models"
)

// ConfigHolder hands out snapshots of the live global configuration. The
// change-stream consumer is the single writer; loops take a fresh snapshot
// per read instead of caching a copy at loop start, so live updates apply
// on the next read. Snapshot slices must be treated as read-only.
type ConfigHolder struct {
	current atomic.Pointer[models.EngineConfig]
}

// NewConfigHolder seeds the holder with the initial configuration.
func NewConfigHolder(cfg models.EngineConfig) *ConfigHolder {
	h := &ConfigHolder{}
	h.current.Store(&cfg)
	return h
}

// Snapshot returns the current configuration value.
func (h *ConfigHolder) Snapshot() models.EngineConfig {
	return *h.current.Load()
}

// Replace swaps in a new configuration atomically.
func (h *ConfigHolder) Replace(cfg models.EngineConfig) {
	h.current.Store(&cfg)
}
