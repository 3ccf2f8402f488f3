package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the expert router
type Config struct {
	// Worker configuration
	WorkerID string `env:"WORKER_ID" envDefault:"experts-1"`

	// Redis configuration
	RedisEnabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASS" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Stream configuration
	StreamKey     string        `env:"STREAM_KEY" envDefault:"experts.requests"`
	ConsumerGroup string        `env:"CONSUMER_GROUP" envDefault:"expert-workers"`
	ResultStream  string        `env:"RESULT_STREAM" envDefault:"experts.answered"`
	BlockTime     time.Duration `env:"BLOCK_TIME" envDefault:"1s"`
	ClaimMinIdle  time.Duration `env:"CLAIM_MIN_IDLE" envDefault:"5m"`

	// LLM configuration
	LLMProvider  string        `env:"LLM_PROVIDER" envDefault:"anthropic"`
	LLMAPIKey    string        `env:"LLM_API_KEY"`
	LLMModel     string        `env:"LLM_MODEL" envDefault:"claude-sonnet-4-20250514"`
	LLMTimeout   time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`
	LLMMaxTokens int           `env:"LLM_MAX_TOKENS" envDefault:"1024"`

	// Backend resilience
	BreakerMaxFailures uint32        `env:"BREAKER_MAX_FAILURES" envDefault:"5"`
	BreakerTimeout     time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`
	RateLimitRPS       float64       `env:"RATE_LIMIT_RPS" envDefault:"0"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST" envDefault:"5"`

	// Catalog and routing configuration
	CatalogPath   string `env:"CATALOG_PATH"`
	DefaultExpert string `env:"DEFAULT_EXPERT"`
	RoutingMode   string `env:"ROUTING_MODE"`
	MaxExperts    int    `env:"MAX_EXPERTS" envDefault:"0"`

	// Pipeline configuration
	Sequential      bool          `env:"INVOKE_SEQUENTIAL" envDefault:"false"`
	MaxConcurrency  int           `env:"MAX_CONCURRENCY" envDefault:"0"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"2m"`
	Synthesize      bool          `env:"SYNTHESIZE" envDefault:"false"`
	SynthesisNote   string        `env:"SYNTHESIS_NOTE"`
	TracingExporter string        `env:"TRACING_EXPORTER" envDefault:"noop"`

	// HTTP server configuration
	HTTPPort int `env:"HTTP_PORT" envDefault:"8082"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return LoadWithOptions(env.Options{})
}

// LoadWithOptions loads configuration with explicit env options, e.g. a
// fixed Environment map in tests.
func LoadWithOptions(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.WorkerID == "" {
		return fmt.Errorf("WORKER_ID is required")
	}

	if c.RedisEnabled {
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required")
		}
		if c.StreamKey == "" {
			return fmt.Errorf("STREAM_KEY is required")
		}
		if c.ConsumerGroup == "" {
			return fmt.Errorf("CONSUMER_GROUP is required")
		}
		if c.ResultStream == "" {
			return fmt.Errorf("RESULT_STREAM is required")
		}
		if c.BlockTime <= 0 {
			return fmt.Errorf("BLOCK_TIME must be positive")
		}
		if c.ClaimMinIdle < 0 {
			return fmt.Errorf("CLAIM_MIN_IDLE must be non-negative")
		}
	}

	if c.LLMProvider == "" {
		return fmt.Errorf("LLM_PROVIDER is required")
	}

	// LLM_API_KEY is optional - without it the offline echo backend is used

	if c.LLMModel == "" {
		return fmt.Errorf("LLM_MODEL is required")
	}

	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}

	if c.LLMMaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}

	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be non-negative")
	}

	if c.MaxExperts < 0 {
		return fmt.Errorf("MAX_EXPERTS must be non-negative")
	}

	if c.MaxConcurrency < 0 {
		return fmt.Errorf("MAX_CONCURRENCY must be non-negative")
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be non-negative")
	}

	if !isValidRoutingMode(c.RoutingMode) {
		return fmt.Errorf("ROUTING_MODE must be one of: keyword, rules, llm, hybrid")
	}

	if c.TracingExporter != "noop" && c.TracingExporter != "stdout" {
		return fmt.Errorf("TRACING_EXPORTER must be one of: noop, stdout")
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}

	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	return validLevels[level]
}

// isValidRoutingMode accepts the router modes; empty lets the catalog decide.
func isValidRoutingMode(mode string) bool {
	switch mode {
	case "", "keyword", "rules", "llm", "hybrid":
		return true
	}
	return false
}

// UseLLM reports whether a real LLM backend should be built.
func (c *Config) UseLLM() bool {
	return c.LLMAPIKey != "" || c.LLMProvider == "ollama"
}

// String returns a string representation of the config (without sensitive data)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{WorkerID=%s, RedisEnabled=%v, RedisAddr=%s, StreamKey=%s, ConsumerGroup=%s, "+
			"LLMProvider=%s, LLMModel=%s, CatalogPath=%s, RoutingMode=%s, MaxExperts=%d, "+
			"Sequential=%v, Synthesize=%v, HTTPPort=%d, LogLevel=%s}",
		c.WorkerID,
		c.RedisEnabled,
		c.RedisAddr,
		c.StreamKey,
		c.ConsumerGroup,
		c.LLMProvider,
		c.LLMModel,
		c.CatalogPath,
		c.RoutingMode,
		c.MaxExperts,
		c.Sequential,
		c.Synthesize,
		c.HTTPPort,
		c.LogLevel,
	)
}
