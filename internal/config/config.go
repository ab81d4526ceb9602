package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/soyeon/reflow/internal/services"
)

// Config holds the top-level application configuration.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Engine    EngineConfig              `yaml:"engine"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ProviderConfig holds model provider settings. APIKey supports ${VAR}
// expansion so keys stay out of config files.
type ProviderConfig struct {
	Type             string `yaml:"type"` // e.g. "openai"
	URL              string `yaml:"url"`  // base URL
	APIKey           string `yaml:"api_key"`
	MaxContextLength int    `yaml:"max_context_length"`
}

// EngineConfig holds execution engine settings.
type EngineConfig struct {
	Concurrency services.ConcurrencyLimits `yaml:"concurrency"`
	// RunRetentionMinutes is how long finished run event buffers stay
	// available for SSE reconnects (default: 30).
	RunRetentionMinutes int `yaml:"run_retention_minutes"`
	// MaxReactIterations bounds the ReAct reasoning loop (default: 3).
	MaxReactIterations int `yaml:"max_react_iterations"`
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Providers: map[string]ProviderConfig{},
		Engine: EngineConfig{
			Concurrency:         services.ConcurrencyLimits{GlobalMax: 10, PerWorkflow: 3},
			RunRetentionMinutes: 30,
			MaxReactIterations:  3,
		},
	}
}

// Load reads a YAML configuration file at path and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Providers map is never nil even if YAML has "providers: {}" or omits it.
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	for name, p := range cfg.Providers {
		p.APIKey = os.ExpandEnv(p.APIKey)
		cfg.Providers[name] = p
	}

	return cfg, nil
}

// LoadDefault tries to load "config.yaml" from the current directory.
// If the file does not exist, it returns sensible defaults.
// Any other error (e.g. permission denied, malformed YAML) is returned.
func LoadDefault() (*Config, error) {
	cfg, err := Load("config.yaml")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}
	return cfg, nil
}
