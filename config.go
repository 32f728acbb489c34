package liveclient

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the connection settings for a Session. The zero value is
// not usable; start from DefaultConfig or LoadConfig.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/live.
	URL string `yaml:"url" validate:"required,uri"`

	// ReconnectInterval is the flat delay between a lost connection and
	// the next dial attempt.
	ReconnectInterval time.Duration `yaml:"reconnect_interval" validate:"min=0"`

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" validate:"min=0"`

	// NormalizePatches runs rendered HTML through the minifier before
	// patching, so whitespace-only template changes do not touch the DOM.
	NormalizePatches bool `yaml:"normalize_patches"`
}

// DefaultConfig returns the settings used when options don't override
// them.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		ReconnectInterval: 2 * time.Second,
		HandshakeTimeout:  10 * time.Second,
	}
}

// UnmarshalYAML accepts durations in time.ParseDuration form ("2s",
// "500ms") rather than raw nanosecond integers.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		URL               string `yaml:"url"`
		ReconnectInterval string `yaml:"reconnect_interval"`
		HandshakeTimeout  string `yaml:"handshake_timeout"`
		NormalizePatches  *bool  `yaml:"normalize_patches"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.URL != "" {
		c.URL = raw.URL
	}
	if raw.ReconnectInterval != "" {
		d, err := time.ParseDuration(raw.ReconnectInterval)
		if err != nil {
			return fmt.Errorf("reconnect_interval: %w", err)
		}
		c.ReconnectInterval = d
	}
	if raw.HandshakeTimeout != "" {
		d, err := time.ParseDuration(raw.HandshakeTimeout)
		if err != nil {
			return fmt.Errorf("handshake_timeout: %w", err)
		}
		c.HandshakeTimeout = d
	}
	if raw.NormalizePatches != nil {
		c.NormalizePatches = *raw.NormalizePatches
	}
	return nil
}

var validate = validator.New()

// Validate checks the config against its struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadConfig reads a YAML config file and validates it. Fields left out
// of the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig("")
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
