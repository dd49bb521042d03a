package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/botirk38/semanticrouter/providers/cached"
	"github.com/botirk38/semanticrouter/providers/hashing"
	"github.com/botirk38/semanticrouter/types"
)

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("HashingByDefault", func(t *testing.T) {
		p, err := NewProvider(ctx, Config{Dimensions: 16})
		if err != nil {
			t.Fatalf("NewProvider failed: %v", err)
		}
		if _, ok := p.(*hashing.Provider); !ok {
			t.Errorf("Expected hashing provider, got %T", p)
		}
		vec, _ := p.EmbedText(ctx, "hello")
		if len(vec) != 16 {
			t.Errorf("Expected 16 dimensions, got %d", len(vec))
		}
	})

	t.Run("Cached", func(t *testing.T) {
		p, err := NewProvider(ctx, Config{Type: types.ProviderHashing, CacheSize: 10})
		if err != nil {
			t.Fatalf("NewProvider failed: %v", err)
		}
		if _, ok := p.(*cached.Provider); !ok {
			t.Errorf("Expected cached provider, got %T", p)
		}
	})

	t.Run("OpenAIRequiresKey", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		if _, err := NewProvider(ctx, Config{Type: types.ProviderOpenAI}); err == nil {
			t.Error("Expected error without API key")
		}
	})

	t.Run("GeminiRequiresKey", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		if _, err := NewProvider(ctx, Config{Type: types.ProviderGemini}); err == nil {
			t.Error("Expected error without API key")
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, err := NewProvider(ctx, Config{Type: "word2vec"}); !errors.Is(err, ErrUnsupportedProvider) {
			t.Errorf("Expected ErrUnsupportedProvider, got %v", err)
		}
	})
}
