package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all settings for the Praxis persona engine. It is loaded
// from ~/.praxis/config.yaml and can be overridden by PRAXIS_* environment
// variables.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Generation GenerationConfig `mapstructure:"generation" yaml:"generation"`
	Personas   PersonaConfig    `mapstructure:"personas" yaml:"personas"`
	Mood       MoodConfig       `mapstructure:"mood" yaml:"mood"`
	Drift      DriftConfig      `mapstructure:"drift" yaml:"drift"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig contains the HTTP service settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8787" or "127.0.0.1:8787".
	Addr string `mapstructure:"addr" yaml:"addr"`
	// ReadTimeoutSec bounds how long a request body read may take.
	ReadTimeoutSec int `mapstructure:"read_timeout_sec" yaml:"read_timeout_sec"`
	// WriteTimeoutSec bounds response writes. Generation calls can be slow,
	// so this defaults well above typical API timeouts.
	WriteTimeoutSec int `mapstructure:"write_timeout_sec" yaml:"write_timeout_sec"`
	// ShutdownTimeoutSec is the grace period for draining connections.
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`
}

// CacheConfig controls the in-memory response cache.
type CacheConfig struct {
	// MaxEntries is the cache capacity. Oldest entries are evicted beyond it.
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
	// TTLMs is the per-entry lifetime in milliseconds.
	TTLMs int `mapstructure:"ttl_ms" yaml:"ttl_ms"`
}

// TTL returns the configured entry lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMs) * time.Millisecond
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	// Path is the database file path. ":memory:" is accepted for throwaway runs.
	Path string `mapstructure:"path" yaml:"path"`
}

// GenerationConfig selects and configures the response generation backend.
type GenerationConfig struct {
	// DefaultProvider names the provider used when a request does not pick one
	// ("openai", "ollama", "anthropic", or "stub").
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	// Providers maps provider names to their settings.
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ProviderConfig contains settings for a single generation provider.
type ProviderConfig struct {
	// Endpoint is the API base URL (mainly for local providers like Ollama).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	// APIKey authenticates against the provider. Prefer the PRAXIS_* env var.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// Model is the model identifier sent with each request.
	Model string `mapstructure:"model" yaml:"model,omitempty"`
	// TimeoutSec bounds a single generation call.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec,omitempty"`
}

// PersonaConfig controls where persona definitions live.
type PersonaConfig struct {
	// Dir is the directory scanned for *.yaml persona definitions.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Watch reloads definitions when files under Dir change.
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// MoodConfig tunes the mood ledger and its analytics.
type MoodConfig struct {
	// AnalyticsWindowDays is the default window when a caller does not
	// supply one.
	AnalyticsWindowDays int `mapstructure:"analytics_window_days" yaml:"analytics_window_days"`
	// RetirementSchedule is the cron spec for the sweep that retires
	// observations past their expected duration.
	RetirementSchedule string `mapstructure:"retirement_schedule" yaml:"retirement_schedule"`
}

// DriftConfig controls the background drift patrol.
type DriftConfig struct {
	// PatrolSchedule is the cron spec for periodic drift checks across all
	// personas. Empty disables the patrol.
	PatrolSchedule string `mapstructure:"patrol_schedule" yaml:"patrol_schedule"`
	// AutoCorrect applies corrective action automatically when the patrol
	// detects drift. Off by default; corrections mutate personas.
	AutoCorrect bool `mapstructure:"auto_correct" yaml:"auto_correct"`
}

// LoggingConfig contains log level and output file settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// File is an optional log file path; empty logs to stderr only.
	File string `mapstructure:"file" yaml:"file"`
}

// Default returns a Config with the stock values.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	praxisDir := filepath.Join(homeDir, ".praxis")

	return &Config{
		Server: ServerConfig{
			Addr:               ":8787",
			ReadTimeoutSec:     15,
			WriteTimeoutSec:    120,
			ShutdownTimeoutSec: 10,
		},
		Cache: CacheConfig{
			MaxEntries: 500,
			TTLMs:      900000, // 15 minutes
		},
		Database: DatabaseConfig{
			Path: filepath.Join(praxisDir, "praxis.db"),
		},
		Generation: GenerationConfig{
			DefaultProvider: "stub",
			Providers: map[string]ProviderConfig{
				"ollama": {
					Endpoint:   "http://127.0.0.1:11434",
					Model:      "llama3.2",
					TimeoutSec: 120,
				},
				"openai": {
					APIKey:     "",
					Model:      "gpt-4o-mini",
					TimeoutSec: 60,
				},
				"anthropic": {
					APIKey:     "",
					Model:      "claude-3-5-sonnet-20241022",
					TimeoutSec: 60,
				},
				"stub": {},
			},
		},
		Personas: PersonaConfig{
			Dir:   filepath.Join(praxisDir, "personas"),
			Watch: true,
		},
		Mood: MoodConfig{
			AnalyticsWindowDays: 7,
			RetirementSchedule:  "* * * * *",
		},
		Drift: DriftConfig{
			PatrolSchedule: "*/5 * * * *",
			AutoCorrect:    false,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(praxisDir, "logs", "praxis.log"),
		},
	}
}

// Load reads configuration from the default location (~/.praxis/config.yaml)
// and merges with environment variables. If no config file exists, it creates
// one with default values.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".praxis", "config.yaml")
	return LoadFromPath(configPath)
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with
// default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := writeConfigFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Environment overrides, e.g. PRAXIS_CACHE_MAX_ENTRIES=1000 or
	// PRAXIS_GENERATION_PROVIDERS_OPENAI_API_KEY=sk-...
	v.SetEnvPrefix("PRAXIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Personas.Dir = expandPath(cfg.Personas.Dir)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills zero values with the stock configuration, so a sparse
// hand-written config file still yields a runnable setup.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = defaults.Server.ReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = defaults.Server.WriteTimeoutSec
	}
	if c.Server.ShutdownTimeoutSec == 0 {
		c.Server.ShutdownTimeoutSec = defaults.Server.ShutdownTimeoutSec
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = defaults.Cache.MaxEntries
	}
	if c.Cache.TTLMs == 0 {
		c.Cache.TTLMs = defaults.Cache.TTLMs
	}
	if c.Database.Path == "" {
		c.Database.Path = defaults.Database.Path
	}
	if c.Generation.DefaultProvider == "" {
		c.Generation.DefaultProvider = defaults.Generation.DefaultProvider
	}
	if c.Generation.Providers == nil {
		c.Generation.Providers = defaults.Generation.Providers
	}
	if c.Personas.Dir == "" {
		c.Personas.Dir = defaults.Personas.Dir
	}
	if c.Mood.AnalyticsWindowDays == 0 {
		c.Mood.AnalyticsWindowDays = defaults.Mood.AnalyticsWindowDays
	}
	if c.Mood.RetirementSchedule == "" {
		c.Mood.RetirementSchedule = defaults.Mood.RetirementSchedule
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
}

// Save writes the current configuration to the default config file location.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".praxis", "config.yaml")
	return c.SaveToPath(configPath)
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// GetDataDir returns the Praxis data directory path (~/.praxis).
func (c *Config) GetDataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".praxis")
}

// EnsureDirectories creates all directories the engine writes into: the data
// directory, the log directory, the database directory, and the persona
// definition directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.GetDataDir(),
		c.Personas.Dir,
	}
	if c.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}
	if c.Database.Path != "" && c.Database.Path != ":memory:" {
		dirs = append(dirs, filepath.Dir(c.Database.Path))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Validate checks the configuration for common errors and inconsistencies.
func (c *Config) Validate() error {
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache.max_entries must be at least 1, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.TTLMs < 1 {
		return fmt.Errorf("cache.ttl_ms must be positive, got %d", c.Cache.TTLMs)
	}

	if c.Generation.DefaultProvider == "" {
		return fmt.Errorf("generation.default_provider cannot be empty")
	}
	if _, exists := c.Generation.Providers[c.Generation.DefaultProvider]; !exists {
		return fmt.Errorf("default provider '%s' not found in providers map", c.Generation.DefaultProvider)
	}

	if c.Mood.AnalyticsWindowDays < 1 {
		return fmt.Errorf("mood.analytics_window_days must be at least 1, got %d", c.Mood.AnalyticsWindowDays)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// writeConfigFile writes a Config struct to a YAML file.
// Uses gopkg.in/yaml.v3 directly to ensure proper tag-based serialization.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
