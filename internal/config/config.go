package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Ollama     OllamaConfig     `yaml:"ollama" mapstructure:"ollama"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	SerpAPI    SerpAPIConfig    `yaml:"serpapi" mapstructure:"serpapi"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	PageInfo   PageInfoConfig   `yaml:"pageinfo" mapstructure:"pageinfo"`
	Job        JobConfig        `yaml:"job" mapstructure:"job"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// LLMConfig selects and tunes the query-generation model.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// OllamaConfig points at a local Ollama server.
type OllamaConfig struct {
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	Model     string `yaml:"model" mapstructure:"model"`
}

// SearchConfig selects the search provider.
type SearchConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// JinaConfig holds Jina AI Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// SerpAPIConfig holds SerpAPI settings.
type SerpAPIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GoogleConfig configures the keyless results-page scraper.
type GoogleConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
	Language  string `yaml:"language" mapstructure:"language"`
}

// PageInfoConfig configures per-URL title/description fetching.
type PageInfoConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyKB   int    `yaml:"max_body_kb" mapstructure:"max_body_kb"`
}

// JobConfig tunes job execution.
type JobConfig struct {
	PaceMS      int `yaml:"pace_ms" mapstructure:"pace_ms"`
	EventBuffer int `yaml:"event_buffer" mapstructure:"event_buffer"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 16)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("perplexity.key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("ollama.server_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "qwen2.5:0.5b-instruct")
	v.SetDefault("search.provider", "google")
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("serpapi.key", "")
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("google.base_url", "https://www.google.com")
	v.SetDefault("google.user_agent", "")
	v.SetDefault("google.language", "en")
	v.SetDefault("pageinfo.timeout_secs", 5)
	v.SetDefault("pageinfo.user_agent", "")
	v.SetDefault("pageinfo.max_body_kb", 1024)
	v.SetDefault("job.pace_ms", 100)
	v.SetDefault("job.event_buffer", 64)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is "scrape" or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "scrape", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.LLM.Provider {
	case "anthropic":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "perplexity":
		if c.Perplexity.Key == "" {
			problems = append(problems, "perplexity.key is required")
		}
	case "ollama":
		if c.Ollama.Model == "" {
			problems = append(problems, "ollama.model is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("llm.provider %q is not one of anthropic, perplexity, ollama", c.LLM.Provider))
	}

	switch c.Search.Provider {
	case "google":
	case "jina":
		if c.Jina.Key == "" {
			problems = append(problems, "jina.key is required")
		}
	case "serpapi":
		if c.SerpAPI.Key == "" {
			problems = append(problems, "serpapi.key is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("search.provider %q is not one of google, jina, serpapi", c.Search.Provider))
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, "llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		problems = append(problems, "llm.max_tokens must be > 0")
	}
	if c.PageInfo.TimeoutSecs <= 0 {
		problems = append(problems, "pageinfo.timeout_secs must be > 0")
	}
	if c.Job.PaceMS < 0 {
		problems = append(problems, "job.pace_ms must be >= 0")
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		problems = append(problems, "server.port must be > 0 and <= 65535")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy with API keys masked, safe to print.
func (c *Config) Redacted() Config {
	out := *c
	out.Anthropic.Key = mask(c.Anthropic.Key)
	out.Perplexity.Key = mask(c.Perplexity.Key)
	out.Jina.Key = mask(c.Jina.Key)
	out.SerpAPI.Key = mask(c.SerpAPI.Key)
	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
