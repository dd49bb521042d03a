// Package cached memoizes an embedding provider with an LRU cache.
package cached

import (
	"context"
	"errors"

	"github.com/botirk38/semanticrouter/types"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the number of embeddings kept when no size is given.
const DefaultSize = 1000

// Provider wraps an EmbeddingProvider. Identical texts are embedded once
// while they stay in the cache. Failed calls are not cached.
type Provider struct {
	inner types.EmbeddingProvider
	cache *lru.Cache[string, []float32]
}

// NewProvider wraps inner with a cache holding up to size embeddings.
func NewProvider(inner types.EmbeddingProvider, size int) (*Provider, error) {
	if inner == nil {
		return nil, errors.New("inner provider cannot be nil")
	}
	if size <= 0 {
		size = DefaultSize
	}

	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Provider{inner: inner, cache: cache}, nil
}

// EmbedText returns the cached embedding if present, otherwise computes and stores it.
// The returned slice is shared with the cache and must not be modified.
func (p *Provider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := p.cache.Get(text); ok {
		return vec, nil
	}

	vec, err := p.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}

	p.cache.Add(text, vec)
	return vec, nil
}

// Len returns the number of cached embeddings
func (p *Provider) Len() int {
	return p.cache.Len()
}

// Close purges the cache and closes the wrapped provider
func (p *Provider) Close() {
	p.cache.Purge()
	p.inner.Close()
}
