// Package config provides engine configuration loading and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all engine settings
type Config struct {
	// LLM provider
	Provider    string        `yaml:"provider"`    // "openai" or "google"
	Model       string        `yaml:"model"`       // LLM model name
	APIKey      string        `yaml:"api_key"`     // API key for LLM provider
	BaseURL     string        `yaml:"base_url"`    // Base URL override (OpenAI-compatible endpoints)
	Temperature float32       `yaml:"temperature"` // Sampling temperature
	MaxTokens   int           `yaml:"max_tokens"`  // Max completion tokens
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// Agent loop
	MaxIterations int           `yaml:"max_iterations"` // Round-trip cap per loop
	ModelRetries  int           `yaml:"model_retries"`  // Transient inference retries
	ToolRetries   int           `yaml:"tool_retries"`   // Transient tool retries
	DomainTimeout time.Duration `yaml:"domain_timeout"` // Per-domain bound in fan-out
	WorkerLimit   int           `yaml:"worker_limit"`   // Concurrent domain loops

	// Transcript
	ContextTokens int `yaml:"context_tokens"` // Token budget for the formatted transcript

	// Debounce
	DebounceDelay time.Duration `yaml:"debounce_delay"`

	// Paths
	StoragePath string `yaml:"storage_path"` // SQLite database path
	CachePath   string `yaml:"cache_path"`   // Badger skip-cache directory

	// Notify hub
	NotifyAddr string `yaml:"notify_addr"` // WebSocket hub listen address, empty disables
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		Temperature:   1.0,
		MaxTokens:     1000,
		HTTPTimeout:   120 * time.Second,
		MaxIterations: 10,
		ModelRetries:  3,
		ToolRetries:   2,
		DomainTimeout: 30 * time.Second,
		WorkerLimit:   3,
		ContextTokens: 8192,
		DebounceDelay: 5 * time.Minute,
		StoragePath:   DefaultDBPath(),
		CachePath:     DefaultCacheDir(),
	}
}

// ApplyDefaults fills zero fields with defaults
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.Temperature == 0 {
		c.Temperature = d.Temperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = d.HTTPTimeout
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.ModelRetries == 0 {
		c.ModelRetries = d.ModelRetries
	}
	if c.ToolRetries == 0 {
		c.ToolRetries = d.ToolRetries
	}
	if c.DomainTimeout == 0 {
		c.DomainTimeout = d.DomainTimeout
	}
	if c.WorkerLimit == 0 {
		c.WorkerLimit = d.WorkerLimit
	}
	if c.ContextTokens == 0 {
		c.ContextTokens = d.ContextTokens
	}
	if c.DebounceDelay == 0 {
		c.DebounceDelay = d.DebounceDelay
	}
	if c.StoragePath == "" {
		c.StoragePath = d.StoragePath
	}
	if c.CachePath == "" {
		c.CachePath = d.CachePath
	}
}

// Load reads a YAML config file, then applies env overrides and defaults.
// A missing file is not an error; env and defaults still apply.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.ApplyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DEALSENSE_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.APIKey == "" {
		c.APIKey = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" && c.APIKey == "" && c.Provider == "google" {
		c.APIKey = v
	}
	if v := os.Getenv("DEALSENSE_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("DEALSENSE_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("DEALSENSE_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("DEALSENSE_DB"); v != "" {
		c.StoragePath = v
	}
}

// DefaultDataDir returns the engine data directory
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "dealsense")
	}
	return filepath.Join(home, ".dealsense")
}

// DefaultDBPath returns the default SQLite path
func DefaultDBPath() string {
	return filepath.Join(DefaultDataDir(), "dealsense.db")
}

// DefaultCacheDir returns the default skip-cache directory
func DefaultCacheDir() string {
	return filepath.Join(DefaultDataDir(), "cache")
}
