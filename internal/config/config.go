// Package config loads the service's YAML configuration, applies
// environment-variable overrides, and validates the result before the
// engine starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Workflow   WorkflowConfig   `yaml:"workflow"`
	LLM        LLMConfig        `yaml:"llm"`
	Cache      CacheConfig      `yaml:"cache"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
}

type ServerConfig struct {
	Port        string `yaml:"port"`
	MetricsPort string `yaml:"metrics_port"`
}

// WorkflowConfig holds the tunables named in the spec: the values every
// Document's Config is seeded from unless overridden per-request.
type WorkflowConfig struct {
	ReadabilityThreshold float64 `yaml:"readability_threshold"`
	MaxRetries           int     `yaml:"max_retries"`
	AutoRun              bool    `yaml:"auto_run"`
	TimeoutSeconds       int     `yaml:"timeout_seconds"`
	WritingMode          string  `yaml:"writing_mode"`
	TargetWordCount      int     `yaml:"target_word_count"`
}

type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	URL string `yaml:"url"`
}

// DatabaseConfig points pkg/storage/postgres at a running Postgres
// instance. Driver is always "pgx", the stdlib-compatible pgx/v5 driver
// sqlx opens; an in-memory Store is used instead when DSN is empty.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type APIConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// validProviders are the LLM backends the gateway knows how to construct.
var validProviders = map[string]bool{
	"anthropic": true,
	"bedrock":   true,
	"mock":      true,
}

var validWritingModes = map[string]bool{
	"academic": true,
	"blog":     true,
	"social":   true,
}

// Load reads the YAML file at path, applies environment overrides, fills
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(config)

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Server.MetricsPort == "" {
		config.Server.MetricsPort = "9090"
	}
	if config.Workflow.ReadabilityThreshold == 0 {
		config.Workflow.ReadabilityThreshold = 70
	}
	if config.Workflow.MaxRetries == 0 {
		config.Workflow.MaxRetries = 3
	}
	if config.Workflow.TimeoutSeconds == 0 {
		config.Workflow.TimeoutSeconds = 60
	}
	if config.Workflow.WritingMode == "" {
		config.Workflow.WritingMode = "blog"
	}
	if config.Workflow.TargetWordCount == 0 {
		config.Workflow.TargetWordCount = 800
	}
	if config.LLM.Provider == "" {
		config.LLM.Provider = "mock"
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.3
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 60 * time.Second
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
	if config.Database.MaxOpenConns == 0 {
		config.Database.MaxOpenConns = 10
	}
	if config.Database.MaxIdleConns == 0 {
		config.Database.MaxIdleConns = 5
	}
	if config.Database.ConnMaxLifetime == 0 {
		config.Database.ConnMaxLifetime = 30 * time.Minute
	}
}

// loadFromEnv overrides config fields from environment variables, matching
// the naming the ambient deployment tooling expects.
func loadFromEnv(config *Config) error {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		config.LLM.Provider = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		config.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		config.LLM.Model = v
	}
	if v := os.Getenv("CACHE_URL"); v != "" {
		config.Cache.URL = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		config.Server.Port = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		config.Server.MetricsPort = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		config.Database.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("AUTO_RUN"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid AUTO_RUN value %q: %w", v, err)
		}
		config.Workflow.AutoRun = parsed
	}
	return nil
}

// validate checks that the loaded configuration is internally consistent.
func validate(config *Config) error {
	if !validProviders[config.LLM.Provider] {
		return fmt.Errorf("unsupported LLM provider: %s", config.LLM.Provider)
	}
	if config.LLM.Provider != "mock" && config.LLM.Model == "" {
		return fmt.Errorf("LLM model is required for provider %s", config.LLM.Provider)
	}
	if config.LLM.Temperature < 0.0 || config.LLM.Temperature > 1.0 {
		return fmt.Errorf("LLM temperature must be between 0.0 and 1.0")
	}
	if config.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM max tokens must be greater than 0")
	}
	if config.Workflow.ReadabilityThreshold < 0 || config.Workflow.ReadabilityThreshold > 100 {
		return fmt.Errorf("readability threshold must be between 0 and 100")
	}
	if config.Workflow.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1")
	}
	if !validWritingModes[config.Workflow.WritingMode] {
		return fmt.Errorf("unsupported writing mode: %s", config.Workflow.WritingMode)
	}
	return nil
}
