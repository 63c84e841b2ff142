// Package config loads cryptkeeper settings from a YAML file with
// environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// EnvFile names the environment variable that points at the config file
const EnvFile = "CRYPTKEEPER_CONFIG"

// DefaultFile is read when neither --config nor EnvFile is set
const DefaultFile = "cryptkeeper.yaml"

// Metadata backends.
const (
	BackendJSON = "json"
	BackendBolt = "bolt"
)

// Config is the full set of settings
type Config struct {
	LogLevel  slog.Level      `yaml:"log_level"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Keys      KeysConfig      `yaml:"keys"`
	Watch     WatchConfig     `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Metadata.Validate(); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	if err := c.Artifacts.Validate(); err != nil {
		return fmt.Errorf("artifacts: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}

// MetadataConfig locates the metadata document
type MetadataConfig struct {
	Path    string `yaml:"path"`
	Backend string `yaml:"backend"`
}

// Validate validates the metadata configuration.
func (c *MetadataConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendJSON
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Backend, validation.Required, validation.In(BackendJSON, BackendBolt)),
	)
}

// ArtifactsConfig locates the ciphertext directory
type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the artifacts configuration.
func (c *ArtifactsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// KeysConfig controls where new vault keys are kept
type KeysConfig struct {
	Keyring bool `yaml:"keyring"`
}

// WatchConfig tunes the watch loop
type WatchConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Notify    bool          `yaml:"notify"`
	CancelKey string        `yaml:"cancel_key"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(10*time.Millisecond)),
		validation.Field(&c.CancelKey, validation.Required, validation.Length(1, 8)),
	)
}

// NewDefaultConfig returns the settings used when no file exists
func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: slog.LevelInfo,
		Metadata: MetadataConfig{
			Path:    "metadata.json",
			Backend: BackendJSON,
		},
		Artifacts: ArtifactsConfig{
			Dir: "crypt",
		},
		Watch: WatchConfig{
			Interval:  time.Second,
			CancelKey: "q",
		},
	}
}

// Resolve picks the config file: the explicit name, then EnvFile, then
// DefaultFile.
func Resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvFile); env != "" {
		return env
	}
	return DefaultFile
}

// Load reads filename over the defaults. A missing file is not an error
// unless required is set.
func Load(filename string, required bool) (*Config, error) {
	cfg := NewDefaultConfig()

	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) && !required {
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
