// Package options provides functional options for configuring Router instances.
package options

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/botirk38/semanticrouter/backends"
	"github.com/botirk38/semanticrouter/fallback"
	"github.com/botirk38/semanticrouter/metrics"
	"github.com/botirk38/semanticrouter/providers/hashing"
	"github.com/botirk38/semanticrouter/providers/openai"
	"github.com/botirk38/semanticrouter/similarity"
	"github.com/botirk38/semanticrouter/types"
	"github.com/sirupsen/logrus"
)

const (
	DefaultThreshold       float32 = 0.5
	DefaultFallbackTimeout         = 20 * time.Second

	DefaultApology           = "Sorry, I couldn't get an answer from the assistant."
	DefaultMissingKeyMessage = "API key not found. Please set the GEMINI_API_KEY environment variable."
)

// CachePolicy decides which fallback answers are inserted into the index.
type CachePolicy int

const (
	// CacheAll inserts every fallback outcome, apologies included.
	CacheAll CachePolicy = iota
	// CacheSuccessOnly inserts only genuine answers.
	CacheSuccessOnly
)

func (p CachePolicy) String() string {
	switch p {
	case CacheAll:
		return "all"
	case CacheSuccessOnly:
		return "success_only"
	default:
		return "unknown"
	}
}

// ParseCachePolicy accepts the names produced by CachePolicy.String.
func ParseCachePolicy(s string) (CachePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return CacheAll, nil
	case "success_only", "success-only":
		return CacheSuccessOnly, nil
	default:
		return CacheAll, fmt.Errorf("unknown cache policy %q", s)
	}
}

// Seed is a question and answer loaded into the index at start.
type Seed struct {
	Question string `mapstructure:"question" json:"question"`
	Answer   string `mapstructure:"answer" json:"answer"`
}

// Option represents a configuration option for Router
type Option func(*Config) error

// Config holds the configuration for building a Router
type Config struct {
	Index      types.IndexBackend
	Provider   types.EmbeddingProvider
	Generator  fallback.Generator
	Comparator similarity.SimilarityFunc

	Threshold         float32
	Apology           string
	MissingKeyMessage string
	FallbackTimeout   time.Duration
	Policy            CachePolicy
	Coalesce          bool

	Logger  logrus.FieldLogger
	Metrics metrics.Metrics

	// Seeds replaces the built-in seed set when non-nil.
	Seeds []Seed
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Comparator:        similarity.CosineSimilarity,
		Threshold:         DefaultThreshold,
		Apology:           DefaultApology,
		MissingKeyMessage: DefaultMissingKeyMessage,
		FallbackTimeout:   DefaultFallbackTimeout,
		Policy:            CacheAll,
	}
}

// Apply applies all the given options to the config
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Provider == nil {
		return errors.New("embedding provider is required - use WithProvider, WithOpenAIProvider, etc.")
	}
	if c.Threshold < -1 || c.Threshold > 1 {
		return fmt.Errorf("threshold %v outside [-1, 1]", c.Threshold)
	}
	if c.FallbackTimeout <= 0 {
		return errors.New("fallback timeout must be positive")
	}
	for i, s := range c.Seeds {
		if strings.TrimSpace(s.Question) == "" {
			return fmt.Errorf("seed %d has an empty question", i)
		}
	}
	return nil
}

// WithIndex allows using a pre-configured index backend
func WithIndex(index types.IndexBackend) Option {
	return func(cfg *Config) error {
		if index == nil {
			return errors.New("index cannot be nil")
		}
		cfg.Index = index
		return nil
	}
}

// WithMemoryIndex sets up an in-process index with a fixed dimension.
// Zero dimensions learns D from the first insert.
func WithMemoryIndex(dimensions int) Option {
	return func(cfg *Config) error {
		index, err := backends.NewMemoryBackend(types.BackendConfig{Dimensions: dimensions})
		if err != nil {
			return err
		}
		cfg.Index = index
		return nil
	}
}

// WithRedisIndex sets up a Redis backed index shared between processes
func WithRedisIndex(addr string, db int, prefix string) Option {
	return func(cfg *Config) error {
		index, err := backends.NewRedisBackend(context.Background(), types.BackendConfig{
			ConnectionString: addr,
			Database:         db,
			Prefix:           prefix,
		})
		if err != nil {
			return err
		}
		cfg.Index = index
		return nil
	}
}

// WithPostgresIndex sets up a pgvector backed index
func WithPostgresIndex(dsn, table string, dimensions int) Option {
	return func(cfg *Config) error {
		index, err := backends.NewPostgresBackend(context.Background(), types.BackendConfig{
			DSN:        dsn,
			TableName:  table,
			Dimensions: dimensions,
		})
		if err != nil {
			return err
		}
		cfg.Index = index
		return nil
	}
}

// WithProvider allows using a pre-configured embedding provider
func WithProvider(provider types.EmbeddingProvider) Option {
	return func(cfg *Config) error {
		if provider == nil {
			return errors.New("provider cannot be nil")
		}
		cfg.Provider = provider
		return nil
	}
}

// WithOpenAIProvider sets up OpenAI embedding provider
func WithOpenAIProvider(apiKey string, model ...string) Option {
	return func(cfg *Config) error {
		config := openai.OpenAIConfig{APIKey: apiKey}
		if len(model) > 0 {
			config.Model = model[0]
		}

		provider, err := openai.NewOpenAIProvider(config)
		if err != nil {
			return err
		}
		cfg.Provider = provider
		return nil
	}
}

// WithHashingProvider sets up the offline feature hashing provider
func WithHashingProvider(dimensions int) Option {
	return func(cfg *Config) error {
		cfg.Provider = hashing.NewProvider(dimensions)
		return nil
	}
}

// WithGenerator sets the fallback answerer consulted on a miss
func WithGenerator(generator fallback.Generator) Option {
	return func(cfg *Config) error {
		if generator == nil {
			return errors.New("generator cannot be nil")
		}
		cfg.Generator = generator
		return nil
	}
}

// WithSimilarityComparator sets the similarity function of the default in-memory index
func WithSimilarityComparator(comparator similarity.SimilarityFunc) Option {
	return func(cfg *Config) error {
		if comparator == nil {
			return errors.New("comparator cannot be nil")
		}
		cfg.Comparator = comparator
		return nil
	}
}

// WithThreshold sets the score a match must strictly exceed to count as a hit
func WithThreshold(threshold float32) Option {
	return func(cfg *Config) error {
		if threshold < -1 || threshold > 1 {
			return fmt.Errorf("threshold %v outside [-1, 1]", threshold)
		}
		cfg.Threshold = threshold
		return nil
	}
}

// WithApology sets the answer returned when the fallback fails
func WithApology(text string) Option {
	return func(cfg *Config) error {
		if text == "" {
			return errors.New("apology text cannot be empty")
		}
		cfg.Apology = text
		return nil
	}
}

// WithMissingKeyMessage sets the answer returned when the fallback has no credentials
func WithMissingKeyMessage(text string) Option {
	return func(cfg *Config) error {
		if text == "" {
			return errors.New("missing key message cannot be empty")
		}
		cfg.MissingKeyMessage = text
		return nil
	}
}

// WithFallbackTimeout bounds each fallback call
func WithFallbackTimeout(timeout time.Duration) Option {
	return func(cfg *Config) error {
		if timeout <= 0 {
			return errors.New("fallback timeout must be positive")
		}
		cfg.FallbackTimeout = timeout
		return nil
	}
}

// WithCachePolicy selects which fallback answers are cached
func WithCachePolicy(policy CachePolicy) Option {
	return func(cfg *Config) error {
		if policy != CacheAll && policy != CacheSuccessOnly {
			return fmt.Errorf("unknown cache policy %d", policy)
		}
		cfg.Policy = policy
		return nil
	}
}

// WithCoalescing makes concurrent misses for the same question share one fallback call
func WithCoalescing(enabled bool) Option {
	return func(cfg *Config) error {
		cfg.Coalesce = enabled
		return nil
	}
}

// WithLogger sets the structured logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(cfg *Config) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.Logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(m metrics.Metrics) Option {
	return func(cfg *Config) error {
		if m == nil {
			return errors.New("metrics cannot be nil")
		}
		cfg.Metrics = m
		return nil
	}
}

// WithSeeds replaces the built-in seed set. Passing no seeds starts empty.
func WithSeeds(seeds ...Seed) Option {
	return func(cfg *Config) error {
		cfg.Seeds = append(make([]Seed, 0, len(seeds)), seeds...)
		return nil
	}
}
