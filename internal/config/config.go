// Package config resolves runtime settings from defaults, an optional YAML
// file, a .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
)

type Config struct {
	Port     string    `yaml:"port"`
	LogLevel string    `yaml:"log_level"`
	LLM      LLMConfig `yaml:"llm"`
	Store    Store     `yaml:"store"`

	ChatHistoryWindow int `yaml:"chat_history_window"`
}

type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	ParamPrefix string        `yaml:"param_prefix"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Store struct {
	Backend     string `yaml:"backend"`
	DataDir     string `yaml:"data_dir"`
	DatabaseURL string `yaml:"database_url"`
	Table       string `yaml:"table"`
	CacheSize   int    `yaml:"cache_size"`
}

func defaults() Config {
	return Config{
		Port:     "3001",
		LogLevel: "info",
		LLM: LLMConfig{
			Provider:  ProviderAnthropic,
			MaxTokens: 2048,
			Timeout:   60 * time.Second,
		},
		Store: Store{
			Backend: StoreMemory,
			DataDir: "./data",
		},
		ChatHistoryWindow: 10,
	}
}

// Load builds a Config. path names an optional YAML file; an empty path
// skips it. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path = strings.TrimSpace(path); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	if key := firstNonEmpty(env("LLM_API_KEY"), env("TOKHUB_API_KEY"), env("ANTHROPIC_API_KEY")); key != "" {
		cfg.LLM.APIKey = key
	}
	setString(&cfg.LLM.ParamPrefix, "PARAM_PREFIX")
	setString(&cfg.Store.Backend, "STORE_BACKEND")
	setString(&cfg.Store.DataDir, "DATA_DIR")
	setString(&cfg.Store.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Store.Table, "STATE_TABLE")

	if err := setInt(&cfg.LLM.MaxTokens, "LLM_MAX_TOKENS"); err != nil {
		return err
	}
	if err := setInt(&cfg.Store.CacheSize, "STORE_CACHE_SIZE"); err != nil {
		return err
	}
	if err := setInt(&cfg.ChatHistoryWindow, "CHAT_HISTORY_WINDOW"); err != nil {
		return err
	}
	if v := env("LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: LLM_TIMEOUT: %w", err)
		}
		cfg.LLM.Timeout = d
	}
	return nil
}

func (c *Config) validate() error {
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderMock:
	default:
		return fmt.Errorf("config: unknown LLM provider %q", c.LLM.Provider)
	}

	c.Store.Backend = strings.ToLower(c.Store.Backend)
	switch c.Store.Backend {
	case StoreMemory:
	case StoreFile:
		if c.Store.DataDir == "" {
			return errors.New("config: DATA_DIR is required for the file store")
		}
	case StoreSQLite:
		if c.Store.DatabaseURL == "" && c.Store.DataDir == "" {
			return errors.New("config: DATABASE_URL or DATA_DIR is required for the sqlite store")
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres store")
		}
	case StoreDynamoDB:
		if c.Store.Table == "" {
			return errors.New("config: STATE_TABLE is required for the dynamodb store")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}

	if c.LLM.MaxTokens <= 0 {
		return errors.New("config: LLM_MAX_TOKENS must be positive")
	}
	if c.LLM.Timeout <= 0 {
		return errors.New("config: LLM_TIMEOUT must be positive")
	}
	if c.Store.CacheSize < 0 {
		return errors.New("config: STORE_CACHE_SIZE must not be negative")
	}
	return nil
}

// Addr returns the listen address for Port, accepting "3001" or ":3001".
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := env(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
