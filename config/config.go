// Package config loads process configuration for the semanticrouter command.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/botirk38/semanticrouter/options"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SEMROUTER_SERVER_LISTEN_ADDRESS.
const EnvPrefix = "SEMROUTER"

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Keys      KeysConfig      `mapstructure:"keys"`
	Index     IndexConfig     `mapstructure:"index"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Fallback  FallbackConfig  `mapstructure:"fallback"`
	Router    RouterConfig    `mapstructure:"router"`
	Seeds     []options.Seed  `mapstructure:"seeds"`
}

type ServerConfig struct {
	ListenAddress   string        `mapstructure:"listen_address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	FlashTTL        time.Duration `mapstructure:"flash_ttl"`
	FlashSize       int           `mapstructure:"flash_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// KeysConfig holds vendor credentials. Each is also read from the vendor's
// conventional environment variable.
type KeysConfig struct {
	Gemini    string `mapstructure:"gemini"`
	OpenAI    string `mapstructure:"openai"`
	Anthropic string `mapstructure:"anthropic"`
}

type IndexConfig struct {
	Type       string         `mapstructure:"type"`
	Dimensions int            `mapstructure:"dimensions"`
	Timeout    time.Duration  `mapstructure:"timeout"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
	CacheSize  int    `mapstructure:"cache_size"`
}

type FallbackConfig struct {
	Provider  string          `mapstructure:"provider"`
	Model     string          `mapstructure:"model"`
	BaseURL   string          `mapstructure:"base_url"`
	MaxTokens int             `mapstructure:"max_tokens"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type BreakerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	OpenTimeout         time.Duration `mapstructure:"open_timeout"`
}

type RateLimitConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type RouterConfig struct {
	Threshold         float32 `mapstructure:"threshold"`
	Policy            string  `mapstructure:"policy"`
	Coalesce          bool    `mapstructure:"coalesce"`
	Apology           string  `mapstructure:"apology"`
	MissingKeyMessage string  `mapstructure:"missing_key_message"`
}

// Load reads defaults, then the config file at path (if any), then the environment.
// An empty path looks for semanticrouter.yaml in the working directory and
// does not fail when it is absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("semanticrouter")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindVendorEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func bindVendorEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"keys.gemini":    "GEMINI_API_KEY",
		"keys.openai":    "OPENAI_API_KEY",
		"keys.anthropic": "ANTHROPIC_API_KEY",
	}
	for key, env := range bindings {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.listen_address", "127.0.0.1:5000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 25*time.Second)
	v.SetDefault("server.flash_ttl", 5*time.Minute)
	v.SetDefault("server.flash_size", 1024)

	// Logging
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("keys.gemini", "")
	v.SetDefault("keys.openai", "")
	v.SetDefault("keys.anthropic", "")

	// Index
	v.SetDefault("index.type", "memory")
	v.SetDefault("index.dimensions", 0)
	v.SetDefault("index.timeout", 5*time.Second)
	v.SetDefault("index.redis.address", "localhost:6379")
	v.SetDefault("index.redis.username", "")
	v.SetDefault("index.redis.password", "")
	v.SetDefault("index.redis.db", 0)
	v.SetDefault("index.redis.prefix", "semrouter:")
	v.SetDefault("index.postgres.dsn", "")
	v.SetDefault("index.postgres.table", "semantic_router_entries")

	// Embedding
	v.SetDefault("embedding.provider", "hashing")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.cache_size", 1000)

	// Fallback
	v.SetDefault("fallback.provider", "gemini")
	v.SetDefault("fallback.model", "")
	v.SetDefault("fallback.base_url", "")
	v.SetDefault("fallback.max_tokens", 1024)
	v.SetDefault("fallback.timeout", options.DefaultFallbackTimeout)
	v.SetDefault("fallback.breaker.enabled", true)
	v.SetDefault("fallback.breaker.consecutive_failures", 5)
	v.SetDefault("fallback.breaker.open_timeout", 30*time.Second)
	v.SetDefault("fallback.rate_limit.enabled", false)
	v.SetDefault("fallback.rate_limit.per_second", 5.0)
	v.SetDefault("fallback.rate_limit.burst", 10)

	// Router
	v.SetDefault("router.threshold", options.DefaultThreshold)
	v.SetDefault("router.policy", options.CacheAll.String())
	v.SetDefault("router.coalesce", false)
	v.SetDefault("router.apology", options.DefaultApology)
	v.SetDefault("router.missing_key_message", options.DefaultMissingKeyMessage)
}

// Validate checks values that cannot be caught by decoding alone.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if _, err := options.ParseCachePolicy(c.Router.Policy); err != nil {
		return err
	}
	if c.Fallback.Timeout <= 0 {
		return errors.New("fallback timeout must be positive")
	}
	if c.Fallback.RateLimit.Enabled && c.Fallback.RateLimit.PerSecond <= 0 {
		return errors.New("fallback rate limit must be positive when enabled")
	}
	return nil
}

// APIKey returns the credential configured for a vendor name.
func (c *Config) APIKey(vendor string) string {
	switch strings.ToLower(vendor) {
	case "gemini":
		return c.Keys.Gemini
	case "openai":
		return c.Keys.OpenAI
	case "anthropic":
		return c.Keys.Anthropic
	default:
		return ""
	}
}
