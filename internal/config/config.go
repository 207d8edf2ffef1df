package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/cyp0633/libjtx/recurrence"
)

const (
	envPrefix           = "JTX"
	defaultDatabasePath = "jtx.db"
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
	defaultPreset       = recurrence.PresetDefault
	defaultWorkers      = 4
)

// AppConfig captures runtime configuration for the jtxrecur tool.
type AppConfig struct {
	DatabasePath string
	LogLevel     string
	LogFormat    string

	RecurrencePreset string
	// CacheTTL and CacheMaxEntries override the preset when non-zero.
	CacheTTL        time.Duration
	CacheMaxEntries int
	// MaxCount overrides the preset's COUNT limit when non-zero.
	MaxCount int

	Workers int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("recurrence.preset", defaultPreset)
	configViper.SetDefault("recurrence.cache_ttl", time.Duration(0))
	configViper.SetDefault("recurrence.cache_max_entries", 0)
	configViper.SetDefault("recurrence.max_count", 0)
	configViper.SetDefault("series.workers", defaultWorkers)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		DatabasePath:     strings.TrimSpace(configViper.GetString("database.path")),
		LogLevel:         strings.ToLower(strings.TrimSpace(configViper.GetString("log.level"))),
		LogFormat:        strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
		RecurrencePreset: strings.TrimSpace(configViper.GetString("recurrence.preset")),
		CacheTTL:         configViper.GetDuration("recurrence.cache_ttl"),
		CacheMaxEntries:  configViper.GetInt("recurrence.cache_max_entries"),
		MaxCount:         configViper.GetInt("recurrence.max_count"),
		Workers:          configViper.GetInt("series.workers"),
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// Validate checks that every setting is usable.
func (c AppConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DatabasePath, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
		validation.Field(&c.RecurrencePreset, validation.In(
			recurrence.PresetDefault,
			recurrence.PresetHighPerformance,
			recurrence.PresetLowMemory,
			recurrence.PresetDisabled,
		)),
		validation.Field(&c.CacheTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.CacheMaxEntries, validation.Min(0)),
		validation.Field(&c.MaxCount, validation.Min(0)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
	)
}

// EngineConfig resolves the recurrence preset and applies the overrides.
func (c AppConfig) EngineConfig() (recurrence.EngineConfig, error) {
	engineConfig, err := recurrence.PresetByName(c.RecurrencePreset)
	if err != nil {
		return recurrence.EngineConfig{}, err
	}
	if c.CacheTTL > 0 {
		engineConfig.CacheConfig.TTL = c.CacheTTL
	}
	if c.CacheMaxEntries > 0 {
		engineConfig.CacheConfig.MaxEntries = c.CacheMaxEntries
	}
	if c.MaxCount > 0 {
		engineConfig.MaxCount = c.MaxCount
	}
	return engineConfig, nil
}
