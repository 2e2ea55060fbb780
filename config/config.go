// Package config loads runtime configuration from file, environment and
// defaults, in that order of increasing precedence for env overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ModelConfig selects and tunes the generation backend.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"` // "openai", "anthropic" or "mock"
	Name        string  `mapstructure:"name"`
	APIKey      string  `mapstructure:"api_key"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Streaming   bool    `mapstructure:"streaming"`
}

// RuntimeConfig tunes the turn loop.
type RuntimeConfig struct {
	MaxRounds          int           `mapstructure:"max_rounds"`
	MaxHistoryMessages int           `mapstructure:"max_history_messages"`
	MaxParallelTools   int           `mapstructure:"max_parallel_tools"`
	ToolTimeout        time.Duration `mapstructure:"tool_timeout"`
}

// KnowledgeConfig tunes document ingestion and retrieval.
type KnowledgeConfig struct {
	// Embeddings switches retrieval from keyword matching to the vector
	// store; it requires an OpenAI API key for the embedder.
	Embeddings     bool   `mapstructure:"embeddings"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	PersistPath    string `mapstructure:"persist_path"`
	ChunkSize      int    `mapstructure:"chunk_size"`
	ChunkOverlap   int    `mapstructure:"chunk_overlap"`
}

// MCPServerConfig describes one stdio tool server to launch and attach.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or text
}

// ToolsConfig carries built-in tool credentials.
type ToolsConfig struct {
	AlphaVantageAPIKey string `mapstructure:"alphavantage_api_key"`
}

// Config is the full runtime configuration.
type Config struct {
	Model      ModelConfig       `mapstructure:"model"`
	Runtime    RuntimeConfig     `mapstructure:"runtime"`
	Knowledge  KnowledgeConfig   `mapstructure:"knowledge"`
	MCPServers []MCPServerConfig `mapstructure:"mcp_servers"`
	Logging    LoggingConfig     `mapstructure:"logging"`
	Tools      ToolsConfig       `mapstructure:"tools"`
}

// Default returns the baseline configuration used when no file exists.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:  "openai",
			Name:      "gpt-4o",
			Streaming: true,
		},
		Runtime: RuntimeConfig{
			MaxRounds:          8,
			MaxHistoryMessages: 50,
			ToolTimeout:        30 * time.Second,
		},
		Knowledge: KnowledgeConfig{
			EmbeddingModel: "text-embedding-3-small",
			ChunkSize:      1000,
			ChunkOverlap:   200,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration from convo.yaml (working directory or ~/.convo)
// and CONVO_* environment variables layered over the defaults. A missing
// config file is not an error.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom behaves like Load but reads the given file when path is non-empty.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("convo")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.convo")
	}

	v.SetEnvPrefix("CONVO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("model.provider", defaults.Model.Provider)
	v.SetDefault("model.name", defaults.Model.Name)
	v.SetDefault("model.streaming", defaults.Model.Streaming)
	v.SetDefault("runtime.max_rounds", defaults.Runtime.MaxRounds)
	v.SetDefault("runtime.max_history_messages", defaults.Runtime.MaxHistoryMessages)
	v.SetDefault("runtime.tool_timeout", defaults.Runtime.ToolTimeout)
	v.SetDefault("knowledge.embedding_model", defaults.Knowledge.EmbeddingModel)
	v.SetDefault("knowledge.chunk_size", defaults.Knowledge.ChunkSize)
	v.SetDefault("knowledge.chunk_overlap", defaults.Knowledge.ChunkOverlap)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the runtime cannot honor.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Runtime.MaxRounds < 0 {
		return fmt.Errorf("runtime.max_rounds must be >= 0")
	}
	for i, srv := range c.MCPServers {
		if srv.Name == "" {
			return fmt.Errorf("mcp_servers[%d]: name is required", i)
		}
		if srv.Command == "" {
			return fmt.Errorf("mcp_servers[%d] (%s): command is required", i, srv.Name)
		}
	}
	return nil
}
