// Package config loads and validates symptomguide configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all symptomguide configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Inference provider configuration
	Inference InferenceConfig `yaml:"inference"`

	// HTTP server
	Server ServerConfig `yaml:"server"`

	// Session persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// InferenceConfig configures the inference provider and credential pool.
type InferenceConfig struct {
	Provider string `yaml:"provider"` // groq, gemini

	// Credentials is the rotation pool. At least one valid credential is
	// required to start; loaded once, never reloaded during a run.
	Credentials []string `yaml:"credentials"`

	Model       string `yaml:"model"`        // text-only operations
	VisionModel string `yaml:"vision_model"` // image analysis
	BaseURL     string `yaml:"base_url"`
	Timeout     string `yaml:"timeout"` // per provider call

	// Retry policy for failed or malformed completions
	MaxAttempts  int    `yaml:"max_attempts"`
	RetryBackoff string `yaml:"retry_backoff"`

	// Credential rotation policy
	UsageLimit     int    `yaml:"usage_limit"`
	CooldownPeriod string `yaml:"cooldown_period"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// StoreConfig configures session persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Dir        string          `yaml:"dir"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "symptomguide",
		Version: "1.0.0",

		Inference: InferenceConfig{
			Provider:       "groq",
			Model:          "mixtral-8x7b-32768",
			VisionModel:    "llama-3.2-90b-vision-preview",
			BaseURL:        "https://api.groq.com/openai/v1",
			Timeout:        "30s",
			MaxAttempts:    3,
			RetryBackoff:   "6s",
			UsageLimit:     3,
			CooldownPeriod: "6s",
		},

		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: "10s",
		},

		Store: StoreConfig{
			DatabasePath: "data/symptomguide.db",
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
			Dir:       "logs",
		},
	}
}

// Load loads configuration from a YAML file, applies environment overrides
// and validates the result. A missing file is not an error: defaults plus
// environment are often a complete configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Numbered credential variables extend the pool: GROQ_API_KEY_1..N,
	// plus the bare GROQ_API_KEY. Order is preserved for rotation.
	var envKeys []string
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		envKeys = append(envKeys, key)
	}
	for i := 1; ; i++ {
		key := os.Getenv(fmt.Sprintf("GROQ_API_KEY_%d", i))
		if key == "" {
			break
		}
		envKeys = append(envKeys, key)
	}
	if len(envKeys) > 0 {
		c.Inference.Credentials = envKeys
		if c.Inference.Provider == "" {
			c.Inference.Provider = "groq"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Inference.Credentials = []string{key}
		c.Inference.Provider = "gemini"
	}

	if addr := os.Getenv("SYMPTOMGUIDE_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if path := os.Getenv("SYMPTOMGUIDE_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if model := os.Getenv("SYMPTOMGUIDE_MODEL"); model != "" {
		c.Inference.Model = model
	}
}

// Validate checks that the configuration can support a running workflow.
// Credential problems here are fatal: the assessment flow must refuse to
// start rather than fail on its first inference call.
func (c *Config) Validate() error {
	valid := c.ValidCredentials()
	if len(valid) == 0 {
		return fmt.Errorf("no valid %s credentials configured", c.Inference.Provider)
	}
	if c.Inference.Provider != "groq" && c.Inference.Provider != "gemini" {
		return fmt.Errorf("unknown inference provider %q", c.Inference.Provider)
	}
	if c.Inference.MaxAttempts < 1 {
		return fmt.Errorf("inference max_attempts must be >= 1, got %d", c.Inference.MaxAttempts)
	}
	if c.Inference.UsageLimit < 1 {
		return fmt.Errorf("inference usage_limit must be >= 1, got %d", c.Inference.UsageLimit)
	}
	return nil
}

// ValidCredentials returns the configured credentials that match the
// provider's expected format, preserving order. Groq keys carry a gsk_
// prefix; other providers only require a non-empty secret.
func (c *Config) ValidCredentials() []string {
	var valid []string
	for _, key := range c.Inference.Credentials {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if c.Inference.Provider == "groq" && !strings.HasPrefix(key, "gsk_") {
			continue
		}
		valid = append(valid, key)
	}
	return valid
}

// GetInferenceTimeout returns the per-call timeout as a duration.
func (c *Config) GetInferenceTimeout() time.Duration {
	d, err := time.ParseDuration(c.Inference.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetRetryBackoff returns the retry backoff as a duration.
func (c *Config) GetRetryBackoff() time.Duration {
	d, err := time.ParseDuration(c.Inference.RetryBackoff)
	if err != nil {
		return 6 * time.Second
	}
	return d
}

// GetCooldownPeriod returns the credential cooldown as a duration.
func (c *Config) GetCooldownPeriod() time.Duration {
	d, err := time.ParseDuration(c.Inference.CooldownPeriod)
	if err != nil {
		return 6 * time.Second
	}
	return d
}

// GetShutdownTimeout returns the server shutdown timeout as a duration.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
