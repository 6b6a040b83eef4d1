package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Accounts []AccountConfig `toml:"accounts"`
	Upload   UploadConfig    `toml:"upload"`
	Database DatabaseConfig  `toml:"database"`
	Scan     ScanConfig      `toml:"scan"`
}

// AccountConfig describes one remote account the engine may upload with.
type AccountConfig struct {
	ID              string `toml:"id"`
	DisplayName     string `toml:"display_name"`
	CredentialsFile string `toml:"credentials_file"`
	DefaultChannel  string `toml:"default_channel"`
	MaxDailyUploads int    `toml:"max_daily_uploads"`
	Timezone        string `toml:"timezone"`
}

// UploadConfig contains transfer tuning knobs.
type UploadConfig struct {
	ChunkSizeBytes int64 `toml:"chunk_size_bytes"`
	RetryAttempts  int   `toml:"retry_attempts"`
	RetryBaseDelay int   `toml:"retry_base_delay_ms"`
	RequestTimeout int   `toml:"request_timeout_s"`
	RatePerSecond  int   `toml:"requests_per_second"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ScanConfig controls which files the scanner ingests.
type ScanConfig struct {
	Extensions []string `toml:"extensions"`
}

// ChunkSize returns the configured chunk size, falling back to 8 MiB.
func (u UploadConfig) ChunkSize() int64 {
	if u.ChunkSizeBytes <= 0 {
		return 8 * 1024 * 1024
	}
	return u.ChunkSizeBytes
}

// BaseDelay returns the configured retry base delay, falling back to 500ms.
func (u UploadConfig) BaseDelay() time.Duration {
	if u.RetryBaseDelay <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(u.RetryBaseDelay) * time.Millisecond
}

// Timeout returns the per-request timeout, falling back to 60s.
func (u UploadConfig) Timeout() time.Duration {
	if u.RequestTimeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(u.RequestTimeout) * time.Second
}

// Account returns the account configuration with the given id.
func (c *Config) Account(id string) (AccountConfig, error) {
	for _, a := range c.Accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return AccountConfig{}, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
}

// Location resolves the account's quota timezone, defaulting to UTC.
func (a AccountConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
