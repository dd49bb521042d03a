package cached

import (
	"context"
	"errors"
	"testing"
)

type countingProvider struct {
	calls  map[string]int
	fail   bool
	closed bool
}

func (c *countingProvider) EmbedText(_ context.Context, text string) ([]float32, error) {
	c.calls[text]++
	if c.fail {
		return nil, errors.New("embedding service down")
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingProvider) Close() { c.closed = true }

func TestProviderMemoizes(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{calls: map[string]int{}}

	p, err := NewProvider(inner, 2)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		vec, err := p.EmbedText(ctx, "hours")
		if err != nil {
			t.Fatalf("EmbedText failed: %v", err)
		}
		if vec[0] != 5 {
			t.Errorf("Unexpected embedding %v", vec)
		}
	}
	if inner.calls["hours"] != 1 {
		t.Errorf("Expected one upstream call, got %d", inner.calls["hours"])
	}

	// size 2: "hours" is evicted by two newer texts
	_, _ = p.EmbedText(ctx, "address")
	_, _ = p.EmbedText(ctx, "products")
	_, _ = p.EmbedText(ctx, "hours")
	if inner.calls["hours"] != 2 {
		t.Errorf("Expected evicted text to be embedded again, got %d calls", inner.calls["hours"])
	}
	if p.Len() != 2 {
		t.Errorf("Expected 2 cached entries, got %d", p.Len())
	}

	p.Close()
	if !inner.closed || p.Len() != 0 {
		t.Error("Close must purge the cache and close the inner provider")
	}
}

func TestProviderDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{calls: map[string]int{}, fail: true}
	p, _ := NewProvider(inner, 0)

	if _, err := p.EmbedText(ctx, "q"); err == nil {
		t.Fatal("Expected error from inner provider")
	}
	inner.fail = false
	if _, err := p.EmbedText(ctx, "q"); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if inner.calls["q"] != 2 {
		t.Errorf("Expected two upstream calls, got %d", inner.calls["q"])
	}
}

func TestNewProviderRequiresInner(t *testing.T) {
	if _, err := NewProvider(nil, 10); err == nil {
		t.Error("Expected error for nil inner provider")
	}
}
