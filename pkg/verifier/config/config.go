package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
	"github.com/jamesainslie/verifier/pkg/verifier/logging"
	"github.com/jamesainslie/verifier/pkg/verifier/types"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Console    string            `mapstructure:"console"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// HistoryConfig configures the run history log.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// CacheConfig configures the last-verified cache used by incremental runs.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	DebounceMS int `mapstructure:"debounce_ms"`
}

// Config represents the application configuration.
type Config struct {
	BufferSize     string        `mapstructure:"buffer_size"`
	NotifyInterval int           `mapstructure:"notify_interval"`
	Algorithms     []string      `mapstructure:"algorithms"`
	Output         string        `mapstructure:"output"`
	Ignore         []string      `mapstructure:"ignore"`
	History        HistoryConfig `mapstructure:"history"`
	Cache          CacheConfig   `mapstructure:"cache"`
	Watch          WatchConfig   `mapstructure:"watch"`
	Logging        LoggingConfig `mapstructure:"logging"`
}

// New returns a viper instance with defaults, the config search path and
// environment binding applied. Callers bind flags onto it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("buffer_size", DefaultBufferSize)
	v.SetDefault("notify_interval", DefaultNotifyInterval)
	v.SetDefault("algorithms", DefaultAlgorithms)
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("ignore", []string{})

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.path", "")

	v.SetDefault("watch.debounce_ms", DefaultDebounce)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.console", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"engine":  "info",
		"watcher": "warn",
		"cache":   "info",
		"tui":     "info",
	})
	return v
}

// Load reads the config file, if any, and returns the merged configuration.
// A missing config file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = New()
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var err error
	if cfg.History.Path, err = ExpandPath(cfg.History.Path); err != nil {
		return nil, err
	}
	if cfg.Cache.Path, err = ExpandPath(cfg.Cache.Path); err != nil {
		return nil, err
	}
	if cfg.Logging.Path, err = ExpandPath(cfg.Logging.Path); err != nil {
		return nil, err
	}
	if cfg.History.Path == "" {
		cfg.History.Path = HistoryDir()
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = CacheDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if _, err := c.BufferBytes(); err != nil {
		return err
	}
	if c.NotifyInterval < 1 || c.NotifyInterval > 100 {
		return fmt.Errorf("%w: notify_interval must be between 1 and 100, got %d",
			types.ErrInvalidConfiguration, c.NotifyInterval)
	}
	if _, err := c.AlgorithmIDs(); err != nil {
		return err
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("%w: history.retention_days must not be negative", types.ErrInvalidConfiguration)
	}
	return nil
}

// BufferBytes returns buffer_size in bytes.
func (c *Config) BufferBytes() (int, error) {
	n, err := types.ParseSize(c.BufferSize)
	if err != nil {
		return 0, fmt.Errorf("%w: buffer_size: %w", types.ErrInvalidConfiguration, err)
	}
	if n <= 0 || n > 1<<30 {
		return 0, fmt.Errorf("%w: buffer_size must be between 1 byte and 1GiB, got %q",
			types.ErrInvalidConfiguration, c.BufferSize)
	}
	return int(n), nil
}

// AlgorithmIDs resolves the configured calculator algorithms.
func (c *Config) AlgorithmIDs() ([]algorithm.ID, error) {
	ids := make([]algorithm.ID, 0, len(c.Algorithms))
	for _, name := range c.Algorithms {
		id, err := algorithm.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("%w: algorithms: %w", types.ErrInvalidConfiguration, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LoggingSettings converts the logging section into a logging.Config.
func (c *Config) LoggingSettings() (logging.Config, error) {
	rot := logging.RotationConfig{
		MaxAge:     c.Logging.Rotation.MaxAge,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		Daily:      c.Logging.Rotation.Daily,
	}
	if c.Logging.Rotation.MaxSize != "" {
		n, err := types.ParseSize(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("logging.rotation.max_size: %w", err)
		}
		rot.MaxSize = n
	}
	return logging.Config{
		Level:        c.Logging.Level,
		Path:         c.Logging.Path,
		Rotation:     rot,
		Components:   c.Logging.Components,
		ConsoleLevel: c.Logging.Console,
	}, nil
}

// ConfigDir returns $XDG_CONFIG_HOME/verifier.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(xdg.ConfigHome, appName)
}

// ConfigFile returns the path of the YAML config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns $XDG_DATA_HOME/verifier.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(xdg.DataHome, appName)
}

// HistoryDir returns the default directory for run history.
func HistoryDir() string {
	return filepath.Join(DataDir(), "history")
}

// CacheDir returns $XDG_CACHE_HOME/verifier/state, the badger directory.
func CacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName, "state")
	}
	return filepath.Join(xdg.CacheHome, appName, "state")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// WriteDefault writes a commented default config file and returns its path.
// An existing file is left untouched.
func WriteDefault() (string, error) {
	path := ConfigFile()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# verify configuration

# Block size used when hashing files
buffer_size: %s

# Percentage step between progress updates (1-100)
notify_interval: %d

# Digests computed by "verify calc" when -a is not given
algorithms: [%s]

# Report format: pretty, plain, json, jsonl, yaml, csv, tsv, markdown, template
output: %s

# Glob patterns of list entries to skip
ignore: []

history:
  enabled: true
  # Empty means $XDG_DATA_HOME/verifier/history
  path: ""
  retention_days: %d

cache:
  # Skip files whose size and mtime match a previous good result
  enabled: false
  # Empty means $XDG_CACHE_HOME/verifier/state
  path: ""

watch:
  debounce_ms: %d

logging:
  # debug, info, warn, error
  level: info
  # Empty means $XDG_STATE_HOME/verifier/verifier.log
  path: ""
  # Also log to stderr at this level; empty disables
  console: ""
  rotation:
    max_size: 10MB
    max_age: 30
    max_backups: 5
    daily: true
  components:
    engine: info
    watcher: warn
    cache: info
    tui: info
`, DefaultBufferSize, DefaultNotifyInterval, strings.Join(DefaultAlgorithms, ", "),
		DefaultOutput, DefaultRetentionDays, DefaultDebounce)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return path, nil
}
