package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all agora configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM transport configuration
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Per-session debate settings
	Session SessionConfig `yaml:"session"`

	// Persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the chat transport.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`

	// ModelPool is the ordered set of model identifiers agents sample from.
	ModelPool []string `yaml:"model_pool"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // genai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"` // default gemini-embedding-001
}

// SessionConfig configures the cycle runner for a debate session.
type SessionConfig struct {
	// MaxCycles is the hard stop on cycle count.
	MaxCycles int `yaml:"max_cycles"`

	// CycleMode is "event_driven" or "timed".
	CycleMode string `yaml:"cycle_mode"`

	// CycleTimeout is the per-cycle wall-clock budget.
	CycleTimeout string `yaml:"cycle_timeout"`

	// DecayRate is the passive per-cycle support decrement.
	DecayRate float64 `yaml:"decay_rate"`

	// SimilarityThreshold is the transition detection cutoff.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// SummarizerDebounceCycles is the minimum cycles between summary writes.
	SummarizerDebounceCycles int `yaml:"summarizer_debounce_cycles"`

	// PerturbationProbability is the per-cycle chance of a frontier draw.
	PerturbationProbability float64 `yaml:"perturbation_probability"`

	// CostLimitUSD is an optional hard budget; 0 disables the check.
	CostLimitUSD float64 `yaml:"cost_limit_usd"`
}

// StoreConfig configures SQLite persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "agora",
		Version: "0.3.0",

		LLM: LLMConfig{
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Timeout: "120s",
			ModelPool: []string{
				"gemini-2.5-flash",
				"gemini-2.5-pro",
			},
		},

		Embedding: EmbeddingConfig{
			Provider: "genai",
			Model:    "gemini-embedding-001",
		},

		Session: SessionConfig{
			MaxCycles:                50,
			CycleMode:                "event_driven",
			CycleTimeout:             "300s",
			DecayRate:                0.02,
			SimilarityThreshold:      0.95,
			SummarizerDebounceCycles: 0,
			PerturbationProbability:  0.20,
		},

		Store: StoreConfig{
			DatabasePath: ".agora/agora.db",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file and merges it over the defaults.
// A missing file is not an error: defaults plus env overrides are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides fills API keys from the environment when the config file
// leaves them blank. GEMINI_API_KEY serves both transports.
func (c *Config) applyEnvOverrides() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

// Validate checks option ranges the engine depends on.
func (c *Config) Validate() error {
	if c.Session.MaxCycles <= 0 {
		return fmt.Errorf("session.max_cycles must be positive, got %d", c.Session.MaxCycles)
	}
	if c.Session.CycleMode != "event_driven" && c.Session.CycleMode != "timed" {
		return fmt.Errorf("session.cycle_mode must be event_driven or timed, got %q", c.Session.CycleMode)
	}
	if c.Session.PerturbationProbability < 0 || c.Session.PerturbationProbability > 1 {
		return fmt.Errorf("session.perturbation_probability must be in [0,1], got %v", c.Session.PerturbationProbability)
	}
	if c.Session.SimilarityThreshold <= 0 || c.Session.SimilarityThreshold > 1 {
		return fmt.Errorf("session.similarity_threshold must be in (0,1], got %v", c.Session.SimilarityThreshold)
	}
	if len(c.LLM.ModelPool) == 0 {
		return fmt.Errorf("llm.model_pool must not be empty")
	}
	if _, err := c.CycleTimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// CycleTimeoutDuration parses the cycle timeout, defaulting to 300s.
func (c *Config) CycleTimeoutDuration() (time.Duration, error) {
	if c.Session.CycleTimeout == "" {
		return 300 * time.Second, nil
	}
	d, err := time.ParseDuration(c.Session.CycleTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid session.cycle_timeout %q: %w", c.Session.CycleTimeout, err)
	}
	return d, nil
}

// LLMTimeoutDuration parses the transport timeout, defaulting to 120s.
func (c *Config) LLMTimeoutDuration() (time.Duration, error) {
	if c.LLM.Timeout == "" {
		return 120 * time.Second, nil
	}
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid llm.timeout %q: %w", c.LLM.Timeout, err)
	}
	return d, nil
}
