package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendAzure     = "azure"
	BackendOpenAI    = "openai"
	BackendGrok      = "grok"
	BackendOllama    = "ollama"
	BackendAnthropic = "anthropic"
	BackendLangChain = "langchain"
)

// Placeholder values used when the environment does not provide credentials.
const (
	PlaceholderEndpoint = "your-azure-endpoint"
	PlaceholderAPIKey   = "your-api-key"
)

// MaxSearchResults is the upper bound on evidence records per turn.
const MaxSearchResults = 5

// Backends lists every supported completion backend
var Backends = []string{BackendAzure, BackendOpenAI, BackendGrok, BackendOllama, BackendAnthropic, BackendLangChain}

// defaultModels is used when engine.model is not set
var defaultModels = map[string]string{
	BackendAzure:     "gpt-4o",
	BackendOpenAI:    "gpt-4o",
	BackendLangChain: "gpt-4o",
	BackendGrok:      "grok-1",
	BackendOllama:    "llama3:latest",
	BackendAnthropic: "claude-sonnet-4-20250514",
}

// DefaultModel returns the model a backend uses when none is configured
func DefaultModel(backend string) string {
	return defaultModels[backend]
}

// Config holds application configuration
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Search   SearchConfig   `mapstructure:"search"`
	Session  SessionConfig  `mapstructure:"session"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
}

// EngineConfig configures the completion backend.
type EngineConfig struct {
	Backend     string        `mapstructure:"backend"`
	Endpoint    string        `mapstructure:"endpoint"` // Azure resource endpoint or OpenAI-compatible base URL
	APIKey      string        `mapstructure:"api_key"`
	APIVersion  string        `mapstructure:"api_version"`
	Model       string        `mapstructure:"model"` // Azure deployment name for the azure backend
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SearchConfig configures the Bing evidence fetcher.
type SearchConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	SubscriptionKey string        `mapstructure:"subscription_key"`
	Count           int           `mapstructure:"count"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

// SessionConfig holds per-session startup values.
type SessionConfig struct {
	ID            string `mapstructure:"id"` // load an existing session when set
	SearchEnabled bool   `mapstructure:"search_enabled"`
}

// LogConfig configures the rotating log files.
type LogConfig struct {
	Dir   string `mapstructure:"dir"`
	Level string `mapstructure:"level"`
}

// DatabaseConfig configures session persistence.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// legacyEnv maps config keys to the environment variable names used by
// existing deployments.
var legacyEnv = map[string]string{
	"engine.endpoint":         "AZURE_OPENAI_ENDPOINT",
	"engine.api_key":          "AZURE_OPENAI_API_KEY",
	"engine.api_version":      "AZURE_OPENAI_API_VERSION",
	"engine.model":            "AZURE_OPENAI_MODEL",
	"search.subscription_key": "BING_SUBSCRIPTION_KEY",
	"search.endpoint":         "BING_SEARCH_ENDPOINT",
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("engine.backend", BackendAzure)
	v.SetDefault("engine.endpoint", PlaceholderEndpoint)
	v.SetDefault("engine.api_key", PlaceholderAPIKey)
	v.SetDefault("engine.api_version", "2024-02-15-preview")
	v.SetDefault("engine.model", "")
	v.SetDefault("engine.temperature", 0.7)
	v.SetDefault("engine.max_tokens", 400)
	v.SetDefault("engine.timeout", "60s")

	v.SetDefault("search.endpoint", "https://api.bing.microsoft.com/v7.0/search")
	v.SetDefault("search.subscription_key", PlaceholderAPIKey)
	v.SetDefault("search.count", MaxSearchResults)
	v.SetDefault("search.timeout", "15s")
	v.SetDefault("search.cache_ttl", "10m")

	v.SetDefault("session.id", "")
	v.SetDefault("session.search_enabled", false)

	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", "info")

	v.SetDefault("database.path", "searchchat.db")
}

// New returns a viper instance with defaults and environment bindings applied.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("SEARCHCHAT")
	v.AutomaticEnv()
	// engine.api_key becomes SEARCHCHAT_ENGINE_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range legacyEnv {
		// BindEnv only errors when no key is given
		_ = v.BindEnv(key, "SEARCHCHAT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
	return v
}

// Load reads an optional .env file and config file into a Config.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("searchchat")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if cfg.Engine.Model == "" {
		cfg.Engine.Model = DefaultModel(cfg.Engine.Backend)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail at request time.
func (c *Config) Validate() error {
	if !IsBackend(c.Engine.Backend) {
		return fmt.Errorf("unknown backend: %s", c.Engine.Backend)
	}
	if c.Search.Count <= 0 || c.Search.Count > MaxSearchResults {
		return fmt.Errorf("search.count must be between 1 and %d, got %d", MaxSearchResults, c.Search.Count)
	}
	if c.Engine.MaxTokens <= 0 {
		return fmt.Errorf("engine.max_tokens must be positive, got %d", c.Engine.MaxTokens)
	}
	if c.Engine.Timeout <= 0 || c.Search.Timeout <= 0 {
		return fmt.Errorf("engine.timeout and search.timeout must be positive")
	}
	return nil
}

// IsBackend reports whether name is a supported backend
func IsBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}
