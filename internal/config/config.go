package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. REVERIE_SERVER_PORT.
const EnvPrefix = "REVERIE"

// Config holds all reverie configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LLMConfig struct {
	Provider      string `mapstructure:"provider"` // "claude-cli", "anthropic", "ollama", "openai"
	Model         string `mapstructure:"model"`
	OllamaURL     string `mapstructure:"ollama_url"`
	OllamaModel   string `mapstructure:"ollama_model"` // e.g. "llama3.2"
	AnthropicKey  string `mapstructure:"anthropic_key"`
	AnthropicURL  string `mapstructure:"anthropic_base_url"`
	OpenAIKey     string `mapstructure:"openai_key"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // "auto", "ollama", "openai", "tfidf"
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	CacheSize  int64  `mapstructure:"cache_size"` // cached vectors; 0 disables the cache
}

type MemoryConfig struct {
	AttentionSpan int           `mapstructure:"attention_span"` // default for new agents
	RecallLimit   int           `mapstructure:"recall_limit"`   // long-term results cap, 0 = none
	Tick          time.Duration `mapstructure:"tick"`           // simulation time per tick
	Start         string        `mapstructure:"start"`          // simulation start, "2006-01-02 15:04:05"
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider:  "claude-cli",
			Model:     "haiku",
			OllamaURL: "http://localhost:11434",
		},
		Embedding: EmbeddingConfig{
			Provider:   "auto",
			Model:      "nomic-embed-text",
			Dimensions: 768,
			CacheSize:  10000,
		},
		Memory: MemoryConfig{
			AttentionSpan: 3,
			RecallLimit:   0,
			Tick:          time.Minute,
			Start:         "2023-02-13 00:00:00",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// DefaultDir is where reverie keeps its config and database: ~/.reverie
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".reverie"), nil
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"log-level": "log.level",
	"db":        "database.path",
	"port":      "server.port",
}

// Load reads configuration with increasing precedence: defaults, the config
// file, REVERIE_* environment variables, then any flags in fs that were set.
// An empty path searches ~/.reverie and the working directory for a file
// named config.{toml,yaml,json}; not finding one is not an error.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if dir, err := DefaultDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// Conventional provider variables work without the prefix.
	if err := v.BindEnv("llm.anthropic_key", "REVERIE_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return Config{}, err
	}
	if err := v.BindEnv("llm.openai_key", "REVERIE_LLM_OPENAI_KEY", "OPENAI_API_KEY"); err != nil {
		return Config{}, err
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Memory.AttentionSpan <= 0 {
		return fmt.Errorf("memory.attention_span must be positive, got %d", c.Memory.AttentionSpan)
	}
	if c.Memory.RecallLimit < 0 {
		return fmt.Errorf("memory.recall_limit must not be negative, got %d", c.Memory.RecallLimit)
	}
	if c.Memory.Tick <= 0 {
		return fmt.Errorf("memory.tick must be positive, got %s", c.Memory.Tick)
	}
	if c.Memory.Tick%time.Second != 0 {
		return fmt.Errorf("memory.tick must be a whole number of seconds, got %s", c.Memory.Tick)
	}
	if c.Embedding.CacheSize < 0 {
		return fmt.Errorf("embedding.cache_size must not be negative, got %d", c.Embedding.CacheSize)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.ollama_url", d.LLM.OllamaURL)
	v.SetDefault("llm.ollama_model", d.LLM.OllamaModel)
	v.SetDefault("llm.anthropic_key", d.LLM.AnthropicKey)
	v.SetDefault("llm.anthropic_base_url", d.LLM.AnthropicURL)
	v.SetDefault("llm.openai_key", d.LLM.OpenAIKey)
	v.SetDefault("llm.openai_base_url", d.LLM.OpenAIBaseURL)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.cache_size", d.Embedding.CacheSize)

	v.SetDefault("memory.attention_span", d.Memory.AttentionSpan)
	v.SetDefault("memory.recall_limit", d.Memory.RecallLimit)
	v.SetDefault("memory.tick", d.Memory.Tick)
	v.SetDefault("memory.start", d.Memory.Start)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
