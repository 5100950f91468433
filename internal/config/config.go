// Package config loads the optional kaiwa config file and merges it with
// the environment. Precedence, lowest to highest: built-in defaults, config
// file, environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rkondo/kaiwa/internal/llm"
)

// Config is the file-level application configuration.
type Config struct {
	// Provider selects the LLM provider ("anthropic", "openai", "gemini",
	// "openrouter", "mock").
	Provider string `yaml:"provider"`

	// Model overrides the selected provider's default model.
	Model string `yaml:"model"`

	// Metalanguage is the learner's support language. Default "English".
	Metalanguage string `yaml:"metalanguage"`

	// User identifies the learner for guided sessions. Default "default".
	User string `yaml:"user"`

	// DB is the SQLite database path.
	DB string `yaml:"db"`

	// MaxRepair is the extra structured-output attempts after the first
	// failure. Default 2.
	MaxRepair *int `yaml:"max_repair"`
}

// DefaultPath returns the config file location: KAIWA_CONFIG if set, else
// $XDG_CONFIG_HOME/kaiwa/config.yaml, else ~/.config/kaiwa/config.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv("KAIWA_CONFIG"); p != "" {
		return p, nil
	}
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "kaiwa", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "kaiwa", "config.yaml"), nil
}

// Load reads the config file and applies environment overrides. A missing
// file is not an error; the config is then defaults plus environment.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults plus environment only
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("KAIWA_METALANGUAGE"); v != "" {
		c.Metalanguage = v
	}
	if v := os.Getenv("KAIWA_USER"); v != "" {
		c.User = v
	}
	if v := os.Getenv("KAIWA_DB"); v != "" {
		c.DB = v
	}
}

func (c *Config) applyDefaults() {
	if c.Metalanguage == "" {
		c.Metalanguage = "English"
	}
	if c.User == "" {
		c.User = "default"
	}
}

// LLMConfig builds the provider configuration: defaults, then the config
// file's provider/model, then KAIWA_* environment variables.
func (c *Config) LLMConfig() llm.Config {
	cfg := llm.DefaultConfig()

	if c.Provider != "" {
		cfg.Provider = c.Provider
	}
	if c.Model != "" {
		switch cfg.Provider {
		case "openai":
			cfg.OpenAI.Model = c.Model
		case "gemini":
			cfg.Gemini.Model = c.Model
		case "openrouter":
			cfg.OpenRouter.Model = c.Model
		default:
			cfg.Anthropic.Model = c.Model
		}
	}

	return llm.OverlayEnv(cfg)
}
