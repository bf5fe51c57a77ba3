// Package config loads client configuration from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full client configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Stream StreamConfig `yaml:"stream"`
	// GraceDelay is the pause between a turn-over event and the reload it
	// triggers.
	GraceDelay Duration `yaml:"grace_delay"`
}

// ServerConfig locates the game server.
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// StreamConfig tunes the push subscription.
type StreamConfig struct {
	BackoffMin Duration `yaml:"backoff_min"`
	BackoffMax Duration `yaml:"backoff_max"`
}

// Default returns the configuration used when no file or env overrides are
// present.
func Default() Config {
	return Config{
		Server: ServerConfig{BaseURL: "http://localhost:8080"},
		Stream: StreamConfig{
			BackoffMin: Duration(500 * time.Millisecond),
			BackoffMax: Duration(15 * time.Second),
		},
		GraceDelay: Duration(time.Second),
	}
}

// Load reads path if it exists, then applies SUSHIGO_* env overrides. An
// empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Server.BaseURL = getEnv("SUSHIGO_SERVER_URL", cfg.Server.BaseURL)
	cfg.Server.Token = getEnv("SUSHIGO_TOKEN", cfg.Server.Token)
	cfg.GraceDelay = getEnvAsDuration("SUSHIGO_GRACE_DELAY", cfg.GraceDelay)
	return cfg, nil
}

// StreamBaseURL derives the websocket base URL from the server base URL.
func (c Config) StreamBaseURL() string {
	url := c.Server.BaseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	default:
		return url
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return Duration(d)
		}
	}
	return defaultValue
}
