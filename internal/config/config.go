package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	History HistoryConfig `yaml:"history"`
	Context ContextConfig `yaml:"context"`
	Rules   RulesConfig   `yaml:"rules"`
	LLM     LLMConfig     `yaml:"llm"`
	Web     WebConfig     `yaml:"web"`
	Logging LoggingConfig `yaml:"logging"`
}

type HistoryConfig struct {
	Dir        string `yaml:"dir"`
	MaxHistory int    `yaml:"max_history"`
	Persist    bool   `yaml:"persist"`
	Backend    string `yaml:"backend"` // "file" or "sqlite"
	DBPath     string `yaml:"db_path"`
}

type ContextConfig struct {
	Budget int `yaml:"budget"` // approximate tokens of prior turns sent to the llm
}

type RulesConfig struct {
	File  string `yaml:"file"`
	Watch bool   `yaml:"watch"`
}

type LLMConfig struct {
	Provider  string        `yaml:"provider"` // "openai" or "dummy"
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 disables
	Burst     int           `yaml:"burst"`
	Fallback  string        `yaml:"fallback"`
}

type WebConfig struct {
	Addr       string `yaml:"addr"`
	MaxHistory int    `yaml:"max_history"`
	JWTSecret  string `yaml:"jwt_secret"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"

	ProviderOpenAI = "openai"
	ProviderDummy  = "dummy"
)

// DefaultFallback is shown when the generative backend fails.
const DefaultFallback = "Sorry, something went wrong while generating a response."

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		History: HistoryConfig{
			Dir:        "conversation_history",
			MaxHistory: 50,
			Persist:    true,
			Backend:    BackendFile,
			DBPath:     "parley.db",
		},
		Context: ContextConfig{Budget: 1000},
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			Model:    "gpt-3.5-turbo",
			Timeout:  30 * time.Second,
			Burst:    1,
			Fallback: DefaultFallback,
		},
		Web: WebConfig{
			Addr:       ":8080",
			MaxHistory: 100,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from a file on top of the defaults. A missing
// file is not an error; the defaults plus environment overrides are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Override with environment variables if present
func (c *Config) applyEnv() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("PARLEY_LLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if secret := os.Getenv("PARLEY_JWT_SECRET"); secret != "" {
		c.Web.JWTSecret = secret
	}
	if dir := os.Getenv("PARLEY_HISTORY_DIR"); dir != "" {
		c.History.Dir = dir
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.History.MaxHistory <= 0 {
		return fmt.Errorf("history.max_history must be positive")
	}
	switch c.History.Backend {
	case BackendFile:
		if c.History.Dir == "" {
			return fmt.Errorf("history.dir is required for the file backend")
		}
	case BackendSQLite:
		if c.History.DBPath == "" {
			return fmt.Errorf("history.db_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("history.backend must be 'file' or 'sqlite'")
	}
	if c.Context.Budget < 0 {
		return fmt.Errorf("context.budget must not be negative")
	}
	if c.LLM.Provider != ProviderOpenAI && c.LLM.Provider != ProviderDummy {
		return fmt.Errorf("llm.provider must be 'openai' or 'dummy'")
	}
	if c.LLM.Provider == ProviderOpenAI && c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.RateLimit < 0 {
		return fmt.Errorf("llm.rate_limit must not be negative")
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must not be negative")
	}
	if c.Web.MaxHistory <= 0 {
		return fmt.Errorf("web.max_history must be positive")
	}
	return nil
}
