package providers

import (
	"context"
	"errors"

	"github.com/botirk38/semanticrouter/providers/cached"
	"github.com/botirk38/semanticrouter/providers/gemini"
	"github.com/botirk38/semanticrouter/providers/hashing"
	"github.com/botirk38/semanticrouter/providers/openai"
	"github.com/botirk38/semanticrouter/types"
)

var ErrUnsupportedProvider = errors.New("unsupported embedding provider")

// Config selects and configures an embedding provider
type Config struct {
	Type       types.ProviderType
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int

	// CacheSize wraps the provider in an LRU memo when positive.
	CacheSize int
}

// NewProvider creates the embedding provider described by config
func NewProvider(ctx context.Context, config Config) (types.EmbeddingProvider, error) {
	var (
		p   types.EmbeddingProvider
		err error
	)

	switch config.Type {
	case types.ProviderOpenAI:
		p, err = NewOpenAIProvider(openai.OpenAIConfig{
			APIKey:     config.APIKey,
			BaseURL:    config.BaseURL,
			Model:      config.Model,
			Dimensions: config.Dimensions,
		})
	case types.ProviderGemini:
		p, err = NewGeminiProvider(ctx, gemini.Config{
			APIKey:     config.APIKey,
			BaseURL:    config.BaseURL,
			Model:      config.Model,
			Dimensions: config.Dimensions,
		})
	case types.ProviderHashing, "":
		p = hashing.NewProvider(config.Dimensions)
	default:
		return nil, ErrUnsupportedProvider
	}
	if err != nil {
		return nil, err
	}

	if config.CacheSize > 0 {
		return cached.NewProvider(p, config.CacheSize)
	}
	return p, nil
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config openai.OpenAIConfig) (types.EmbeddingProvider, error) {
	return openai.NewOpenAIProvider(config)
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, config gemini.Config) (types.EmbeddingProvider, error) {
	return gemini.NewProvider(ctx, config)
}
