// internal/config/config.go
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel        string        `mapstructure:"log_level"`
	DBPath          string        `mapstructure:"db_path"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	SyncDelay       time.Duration `mapstructure:"sync_delay"`
	SyncBatchSize   int           `mapstructure:"sync_batch_size"`
	RateLimitBuffer int           `mapstructure:"rate_limit_buffer"`
}

// DefaultConfigDir returns the directory holding the config file, database and
// token file: ~/.config/projtrack.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "projtrack")
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	configDir := DefaultConfigDir()

	// Set default values
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("db_path", filepath.Join(configDir, "projtrack.db"))
	viper.SetDefault("cache_ttl", "24h")
	viper.SetDefault("sync_delay", "500ms")
	viper.SetDefault("sync_batch_size", 10)
	viper.SetDefault("rate_limit_buffer", 100)

	// Load from config file if it exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables: PROJTRACK_DB_PATH, PROJTRACK_LOG_LEVEL, ...
	viper.SetEnvPrefix("projtrack")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate
	if cfg.DBPath == "" {
		return nil, errors.New("db_path must not be empty")
	}
	if cfg.CacheTTL <= 0 {
		return nil, errors.New("cache_ttl must be a positive duration")
	}
	if cfg.SyncBatchSize <= 0 {
		return nil, errors.New("sync_batch_size must be positive")
	}
	if cfg.RateLimitBuffer < 0 {
		return nil, errors.New("rate_limit_buffer must not be negative")
	}

	return &cfg, nil
}
