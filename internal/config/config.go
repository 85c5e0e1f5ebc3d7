package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.trai.ch/zerr"
)

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = zerr.New("invalid configuration")

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Cache    CacheConfig
	Security SecurityConfig
	Log      LogConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// CacheConfig controls the preload cache.
type CacheConfig struct {
	FreshnessWindow time.Duration `mapstructure:"freshness_window"`
	TransactionDays int           `mapstructure:"transaction_days"`
}

// SecurityConfig points at the field encryption key.
type SecurityConfig struct {
	KeyPath string `mapstructure:"key_path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
	JSON  bool
}

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "pocketbook")
}

// Path returns the config file location, honouring POCKETBOOK_CONFIG.
func Path() string {
	if p := os.Getenv("POCKETBOOK_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "pocketbook", "config.toml")
}

// Load reads configuration from file and env. Env var overrides use prefix POCKETBOOK_.
// An explicit path takes precedence over POCKETBOOK_CONFIG.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("database.path", filepath.Join(dataDir(), "pocketbook.db"))
	v.SetDefault("cache.freshness_window", "5m")
	v.SetDefault("cache.transaction_days", 7)
	v.SetDefault("security.key_path", filepath.Join(dataDir(), "field.key"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetConfigType("toml")
	if path == "" {
		path = Path()
	}
	v.SetConfigFile(path)

	v.SetEnvPrefix("POCKETBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// a missing file is fine, defaults and env still apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, zerr.Wrap(err, "read config")
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks ranges that viper cannot express.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return invalidField("database.path")
	}
	if c.Cache.FreshnessWindow <= 0 {
		return invalidField("cache.freshness_window")
	}
	if c.Cache.TransactionDays <= 0 {
		return invalidField("cache.transaction_days")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalidField("log.level")
	}
	return nil
}

func invalidField(field string) error {
	return zerr.With(zerr.Wrap(ErrInvalidConfig, field), "field", field)
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(path string, cfg Config) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("cache.freshness_window", cfg.Cache.FreshnessWindow.String())
	v.Set("cache.transaction_days", cfg.Cache.TransactionDays)
	v.Set("security.key_path", cfg.Security.KeyPath)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.json", cfg.Log.JSON)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
