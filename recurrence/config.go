package recurrence

import (
	"fmt"
	"time"
)

// EngineConfig selects the caching and limits of an Engine.
type EngineConfig struct {
	CacheEnabled bool
	CacheConfig  CacheConfig

	// MaxCount rejects rules whose COUNT is larger, as unsupported (0 = unlimited)
	MaxCount int
}

// DefaultEngineConfig caches expansions and accepts any COUNT.
var DefaultEngineConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,
	MaxCount:     0,
}

// HighPerformanceConfig is optimized for hosts regenerating many series at once
var HighPerformanceConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             30 * time.Minute,
		MaxEntries:      5000,
		CleanupInterval: 10 * time.Minute,
	},
	MaxCount: 1000,
}

// LowMemoryConfig keeps few expansions around and caps COUNT.
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: 2 * time.Minute,
	},
	MaxCount: 500,
}

// DisabledCacheConfig evaluates every input afresh.
var DisabledCacheConfig = EngineConfig{
	CacheEnabled: false,
}

// Preset names accepted by PresetByName.
const (
	PresetDefault         = "default"
	PresetHighPerformance = "high-performance"
	PresetLowMemory       = "low-memory"
	PresetDisabled        = "disabled"
)

// PresetByName returns the engine configuration registered under name.
func PresetByName(name string) (EngineConfig, error) {
	switch name {
	case PresetDefault, "":
		return DefaultEngineConfig, nil
	case PresetHighPerformance:
		return HighPerformanceConfig, nil
	case PresetLowMemory:
		return LowMemoryConfig, nil
	case PresetDisabled:
		return DisabledCacheConfig, nil
	default:
		return EngineConfig{}, fmt.Errorf("unknown recurrence preset %q", name)
	}
}

// NewEngineWithConfig creates an engine. A cache, with its sweep goroutine, is
// started only when CacheEnabled is set; release it with Close.
func NewEngineWithConfig(config EngineConfig) *Engine {
	var cache *ExpansionCache
	if config.CacheEnabled {
		cache = NewExpansionCache(config.CacheConfig)
	}

	return &Engine{
		cache:  cache,
		config: config,
	}
}
