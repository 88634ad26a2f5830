// Package config provides configuration loading for devforge.
//
// Configuration is assembled from hardcoded defaults, an optional YAML file
// and DEVFORGE_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete devforge configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	HTTP      HTTPConfig      `koanf:"http"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	LLM       LLMConfig       `koanf:"llm"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
	Storage   StorageConfig   `koanf:"storage"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	Events    EventsConfig    `koanf:"events"`
}

// ServerConfig identifies the MCP server to clients.
type ServerConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// HTTPConfig holds the HTTP API configuration.
type HTTPConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig is the user-facing subset of the logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Protocol   string  `koanf:"protocol"` // grpc or http/protobuf
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
}

// LLMConfig selects the text-generation backend.
type LLMConfig struct {
	Provider          string   `koanf:"provider"` // googleai, anthropic, openai
	Model             string   `koanf:"model"`
	APIKey            Secret   `koanf:"api_key"`
	BaseURL           string   `koanf:"base_url"`
	MaxTokens         int      `koanf:"max_tokens"`
	RequestsPerMinute int      `koanf:"requests_per_minute"`
	Timeout           Duration `koanf:"timeout"`
}

// WorkflowConfig tunes the workflow orchestrator.
type WorkflowConfig struct {
	CheckpointThreshold int `koanf:"checkpoint_threshold"`
}

// StorageConfig locates generated project trees.
type StorageConfig struct {
	OutputDir string `koanf:"output_dir"`
}

// KnowledgeConfig configures the knowledge-base lookup.
type KnowledgeConfig struct {
	Enabled    bool   `koanf:"enabled"`
	SourcesDir string `koanf:"sources_dir"`
	Path       string `koanf:"path"` // chromem persistence dir, empty for in-memory
	Embedder   string `koanf:"embedder"`
	MaxResults int    `koanf:"max_results"`
	Watch      bool   `koanf:"watch"`
}

// EventsConfig configures workflow event publishing.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
//
// Returns an error if:
//   - HTTP port is not between 1 and 65535
//   - the checkpoint threshold is not positive
//   - the LLM provider, log format or embedder is unknown
//   - an LLM base URL is set for the anthropic provider
func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port: %d (must be 1-65535)", c.HTTP.Port)
	}
	if c.HTTP.ShutdownTimeout.Duration() <= 0 {
		return errors.New("http shutdown timeout must be positive")
	}
	if c.Workflow.CheckpointThreshold < 1 {
		return fmt.Errorf("invalid checkpoint threshold: %d (must be >= 1)", c.Workflow.CheckpointThreshold)
	}
	switch c.LLM.Provider {
	case "googleai", "anthropic", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q (expected googleai, anthropic or openai)", c.LLM.Provider)
	}
	if c.LLM.Provider == "anthropic" && c.LLM.BaseURL != "" {
		return errors.New("llm.base_url is not supported by the anthropic provider")
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("invalid llm max_tokens: %d", c.LLM.MaxTokens)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample_rate must be within [0, 1], got %v", c.Telemetry.SampleRate)
	}
	if c.Knowledge.Enabled {
		if c.Knowledge.SourcesDir == "" {
			return errors.New("knowledge.sources_dir is required when the knowledge base is enabled")
		}
		if c.Knowledge.Embedder != "hash" && c.Knowledge.Embedder != "openai" {
			return fmt.Errorf("unknown knowledge embedder %q (expected hash or openai)", c.Knowledge.Embedder)
		}
	}
	if strings.ContainsAny(c.Events.SubjectPrefix, " *>") {
		return fmt.Errorf("invalid events subject prefix %q", c.Events.SubjectPrefix)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = "devforge"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "dev"
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "127.0.0.1"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 9191
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "googleai"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	if cfg.LLM.RequestsPerMinute == 0 {
		cfg.LLM.RequestsPerMinute = 30
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(2 * time.Minute)
	}

	// 20 completed tasks between automatic checkpoints.
	if cfg.Workflow.CheckpointThreshold == 0 {
		cfg.Workflow.CheckpointThreshold = 20
	}

	if cfg.Storage.OutputDir == "" {
		cfg.Storage.OutputDir = "./devforge-projects"
	}

	if cfg.Knowledge.Embedder == "" {
		cfg.Knowledge.Embedder = "hash"
	}
	if cfg.Knowledge.MaxResults == 0 {
		cfg.Knowledge.MaxResults = 3
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "devforge"
	}
}
