// Package config loads the extractor configuration from a YAML file with
// environment-variable overrides for deployment-specific values. The
// loaded Config is passed explicitly into constructors; nothing reads it
// from package state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level extractor configuration.
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	BigQuery BigQueryConfig `yaml:"bigquery"`
	GCS      GCSConfig      `yaml:"gcs"`
}

// ModelConfig selects and tunes the generative backends.
type ModelConfig struct {
	// Provider is "ollama" or "gemini".
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	ModelName   string        `yaml:"model_name"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	// NarrativeTimeout applies to the longer insight-generation calls.
	NarrativeTimeout time.Duration `yaml:"narrative_timeout"`
}

// UnmarshalYAML decodes durations from strings like "60s" and leaves any
// field absent from the document at its current value.
func (m *ModelConfig) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		Provider         *string  `yaml:"provider"`
		BaseURL          *string  `yaml:"base_url"`
		ModelName        *string  `yaml:"model_name"`
		Temperature      *float64 `yaml:"temperature"`
		MaxTokens        *int     `yaml:"max_tokens"`
		Timeout          *string  `yaml:"timeout"`
		NarrativeTimeout *string  `yaml:"narrative_timeout"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}

	if aux.Provider != nil {
		m.Provider = *aux.Provider
	}
	if aux.BaseURL != nil {
		m.BaseURL = *aux.BaseURL
	}
	if aux.ModelName != nil {
		m.ModelName = *aux.ModelName
	}
	if aux.Temperature != nil {
		m.Temperature = *aux.Temperature
	}
	if aux.MaxTokens != nil {
		m.MaxTokens = *aux.MaxTokens
	}
	if aux.Timeout != nil {
		d, err := time.ParseDuration(*aux.Timeout)
		if err != nil {
			return fmt.Errorf("model.timeout: %w", err)
		}
		m.Timeout = d
	}
	if aux.NarrativeTimeout != nil {
		d, err := time.ParseDuration(*aux.NarrativeTimeout)
		if err != nil {
			return fmt.Errorf("model.narrative_timeout: %w", err)
		}
		m.NarrativeTimeout = d
	}
	return nil
}

// PipelineConfig tunes extraction and retry behavior.
type PipelineConfig struct {
	MaxAttempts      int  `yaml:"max_attempts"`
	ChunkSize        int  `yaml:"chunk_size"`
	MaxChunks        int  `yaml:"max_chunks"`
	MaxConcurrent    int  `yaml:"max_concurrent"`
	NarrativeEnabled bool `yaml:"narrative_enabled"`
	SummaryEnabled   bool `yaml:"summary_enabled"`
}

// BigQueryConfig locates the persistence dataset.
type BigQueryConfig struct {
	ProjectID string `yaml:"project_id"`
	Dataset   string `yaml:"dataset"`
}

// GCSConfig locates the statement document bucket.
type GCSConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:         "ollama",
			BaseURL:          "http://localhost:11434",
			ModelName:        "nemotron",
			Temperature:      0.1,
			MaxTokens:        4096,
			Timeout:          60 * time.Second,
			NarrativeTimeout: 180 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxAttempts:      3,
			ChunkSize:        2800,
			MaxChunks:        3,
			MaxConcurrent:    4,
			NarrativeEnabled: true,
			SummaryEnabled:   true,
		},
		BigQuery: BigQueryConfig{Dataset: "statements"},
	}
}

// Load reads a YAML config file, layering it over the defaults and then
// applying environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("EXTRACTOR_MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("EXTRACTOR_MODEL_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("EXTRACTOR_MODEL_NAME"); v != "" {
		cfg.Model.ModelName = v
	}
	if v := os.Getenv("EXTRACTOR_BQ_PROJECT"); v != "" {
		cfg.BigQuery.ProjectID = v
	}
	if v := os.Getenv("EXTRACTOR_BQ_DATASET"); v != "" {
		cfg.BigQuery.Dataset = v
	}
	if v := os.Getenv("EXTRACTOR_GCS_BUCKET"); v != "" {
		cfg.GCS.Bucket = v
	}
}

func (c *Config) validate() error {
	switch c.Model.Provider {
	case "ollama", "gemini":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Pipeline.MaxAttempts <= 0 {
		return fmt.Errorf("pipeline.max_attempts must be positive, got %d", c.Pipeline.MaxAttempts)
	}
	if c.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("pipeline.chunk_size must be positive, got %d", c.Pipeline.ChunkSize)
	}
	return nil
}
