// Package config loads the assistant-core configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Valid provider and backend names.
var (
	ValidEmbeddingProviders = []string{"none", "hash", "ollama", "openai", "gemini"}
	ValidLLMProviders       = []string{"none", "openai", "gemini"}
	ValidSessionBackends    = []string{"memory", "badger"}
	ValidLogLevels          = []string{"debug", "info", "warn", "error"}
)

// Config holds all assistant-core configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Vector     VectorConfig     `yaml:"vector"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	LLM        LLMConfig        `yaml:"llm"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Session    SessionConfig    `yaml:"session"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig locates the memory store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// VectorConfig configures the semantic index. An empty path keeps it in memory.
type VectorConfig struct {
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // none, hash, ollama, openai, gemini
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Dims     int    `yaml:"dims"`
}

// LLMConfig selects the completion provider used for extraction, intent and chat.
type LLMConfig struct {
	Provider string `yaml:"provider"` // none, openai, gemini
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Timeout  string `yaml:"timeout"`
}

// ExtractionConfig configures universal memory extraction.
type ExtractionConfig struct {
	// LLMEnabled adds the model layer to the extraction chain when an LLM is configured.
	LLMEnabled bool `yaml:"llm_enabled"`
	// WriteConcurrency bounds concurrent candidate writes.
	WriteConcurrency int `yaml:"write_concurrency"`
}

// RetrievalConfig tunes recall.
type RetrievalConfig struct {
	Limit         int     `yaml:"limit"`
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
	BaselineLimit int     `yaml:"baseline_limit"`
	ProfileTTL    string  `yaml:"profile_ttl"`
	// Budget is the token budget for memories injected into chat prompts.
	Budget int `yaml:"budget"`
}

// SessionConfig selects where conversation context is kept.
type SessionConfig struct {
	Backend  string `yaml:"backend"` // memory, badger
	Path     string `yaml:"path"`
	MaxTurns int    `yaml:"max_turns"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultDir returns ~/.assistant-core.
func DefaultDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".assistant-core")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	dir := DefaultDir()
	return &Config{
		Database: DatabaseConfig{Path: filepath.Join(dir, "memory.db")},
		Vector:   VectorConfig{Path: filepath.Join(dir, "vectors"), Compress: true},
		Embedding: EmbeddingConfig{
			Provider: "hash",
			Dims:     256,
		},
		LLM: LLMConfig{
			Provider: "none",
			Timeout:  "60s",
		},
		Extraction: ExtractionConfig{
			LLMEnabled:       true,
			WriteConcurrency: 4,
		},
		Retrieval: RetrievalConfig{
			Limit:         20,
			TopK:          10,
			MinSimilarity: 0.3,
			BaselineLimit: 10,
			ProfileTTL:    "10m",
			Budget:        2000,
		},
		Session: SessionConfig{
			Backend:  "memory",
			Path:     filepath.Join(dir, "sessions"),
			MaxTurns: 50,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file. A missing file yields the defaults. Environment
// overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ASSISTANT_CORE_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("ASSISTANT_CORE_EMBED_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("ASSISTANT_CORE_EMBED_MODEL"); v != "" {
		c.Embedding.Model = v
	}

	// API keys fill in credentials; a key only selects a provider when none is chosen.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.LLM.Provider == "" || c.LLM.Provider == "none" {
			c.LLM.Provider = "openai"
		}
		if c.LLM.Provider == "openai" && c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if c.LLM.Provider == "" || c.LLM.Provider == "none" {
			c.LLM.Provider = "gemini"
		}
		if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.Embedding.Provider == "gemini" && c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" && c.Embedding.Provider == "ollama" {
		c.Embedding.BaseURL = host
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if !slices.Contains(ValidEmbeddingProviders, c.Embedding.Provider) {
		errs = append(errs, fmt.Errorf("invalid embedding provider: %s (valid: %v)", c.Embedding.Provider, ValidEmbeddingProviders))
	}
	if !slices.Contains(ValidLLMProviders, c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("invalid llm provider: %s (valid: %v)", c.LLM.Provider, ValidLLMProviders))
	}
	if c.LLM.Provider != "none" && c.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("llm provider %s needs an API key (set OPENAI_API_KEY or GEMINI_API_KEY)", c.LLM.Provider))
	}
	if _, err := parseDuration(c.LLM.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("llm.timeout: %w", err))
	}
	if _, err := parseDuration(c.Retrieval.ProfileTTL); err != nil {
		errs = append(errs, fmt.Errorf("retrieval.profile_ttl: %w", err))
	}
	if c.Retrieval.MinSimilarity < 0 || c.Retrieval.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("retrieval.min_similarity must be within [0,1], got %v", c.Retrieval.MinSimilarity))
	}
	if !slices.Contains(ValidSessionBackends, c.Session.Backend) {
		errs = append(errs, fmt.Errorf("invalid session backend: %s (valid: %v)", c.Session.Backend, ValidSessionBackends))
	}
	if c.Session.Backend == "badger" && c.Session.Path == "" {
		errs = append(errs, errors.New("session.path is required for the badger backend"))
	}
	if !slices.Contains(ValidLogLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels))
	}
	return errors.Join(errs...)
}

// GetLLMTimeout returns the LLM timeout, 60s when unset or invalid.
func (c *Config) GetLLMTimeout() time.Duration {
	if d, err := parseDuration(c.LLM.Timeout); err == nil && d > 0 {
		return d
	}
	return 60 * time.Second
}

// GetProfileTTL returns the interest-profile TTL, 10m when unset or invalid.
func (c *Config) GetProfileTTL() time.Duration {
	if d, err := parseDuration(c.Retrieval.ProfileTTL); err == nil && d > 0 {
		return d
	}
	return 10 * time.Minute
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
