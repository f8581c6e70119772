package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/latticehq/lattice/internal/model"
)

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type GraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type PipelineConfig struct {
	BatchSize              int     `toml:"batch_size"`
	MaxConsecutiveFailures int     `toml:"max_consecutive_failures"`
	MinConfidence          float64 `toml:"min_confidence"`
	SimilarityThreshold    float64 `toml:"similarity_threshold"`
	ExtractWorkers         int     `toml:"extract_workers"`
}

type FingerprintConfig struct {
	// Backend selects where fingerprint records live: "graph" (default) or
	// "bolt" for a local key-value file.
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type Config struct {
	LLM         LLMConfig         `toml:"llm"`
	Graph       GraphConfig       `toml:"graph"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Fingerprint FingerprintConfig `toml:"fingerprint"`
	SchemaPath  string            `toml:"schema_path"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config built from environment variables and defaults
// only, for callers that run without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("GRAPH_URI"); v != "" {
		c.Graph.URI = v
	}
	if v := os.Getenv("GRAPH_USER"); v != "" {
		c.Graph.User = v
	}
	if v := os.Getenv("GRAPH_PASSWORD"); v != "" {
		c.Graph.Password = v
	}
}

func (c *Config) applyDefaults() {
	if c.Graph.URI == "" {
		c.Graph.URI = "bolt://localhost:7687"
	}
	if c.Pipeline.BatchSize == 0 {
		c.Pipeline.BatchSize = 20
	}
	if c.Pipeline.MaxConsecutiveFailures == 0 {
		c.Pipeline.MaxConsecutiveFailures = 10
	}
	if c.Pipeline.SimilarityThreshold == 0 {
		c.Pipeline.SimilarityThreshold = 0.8
	}
	if c.Pipeline.ExtractWorkers == 0 {
		c.Pipeline.ExtractWorkers = 1
	}
	if c.Fingerprint.Backend == "" {
		c.Fingerprint.Backend = "graph"
	}
}

// Validate rejects configurations that cannot start a run. It is called
// before any document is processed.
func (c *Config) Validate() error {
	provider := c.LLM.Provider
	if provider == "" {
		return &model.ConfigurationError{Field: "llm.provider", Msg: "no LLM provider configured"}
	}
	if provider != "ollama" && c.LLM.APIKey == "" {
		return &model.ConfigurationError{Field: "llm.api_key", Msg: fmt.Sprintf("provider %q requires an API key", provider)}
	}
	if c.Pipeline.BatchSize < 1 {
		return &model.ConfigurationError{Field: "pipeline.batch_size", Msg: "must be positive"}
	}
	if c.Pipeline.MaxConsecutiveFailures < 1 {
		return &model.ConfigurationError{Field: "pipeline.max_consecutive_failures", Msg: "must be positive"}
	}
	if c.Pipeline.MinConfidence < 0 || c.Pipeline.MinConfidence > 1 {
		return &model.ConfigurationError{Field: "pipeline.min_confidence", Msg: "must be in [0,1]"}
	}
	if c.Fingerprint.Backend == "bolt" && c.Fingerprint.Path == "" {
		return &model.ConfigurationError{Field: "fingerprint.path", Msg: "bolt backend requires a path"}
	}
	return nil
}
