package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/botirk38/semanticrouter/similarity"
	"github.com/botirk38/semanticrouter/types"
)

func TestIndexBasicOperations(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(nil)

	t.Run("EmptyIndex", func(t *testing.T) {
		_, found, err := idx.Nearest(ctx, []float32{1, 0, 0})
		if err != nil {
			t.Fatalf("Nearest on empty index failed: %v", err)
		}
		if found {
			t.Error("Expected no match on empty index")
		}
		if n, _ := idx.Len(ctx); n != 0 {
			t.Errorf("Expected length 0, got %d", n)
		}
	})

	t.Run("InsertAndGet", func(t *testing.T) {
		entry := types.Entry{Question: "hours", Embedding: []float32{1, 0, 0}, Answer: "9 to 5"}
		if err := idx.Insert(ctx, entry); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}

		got, found, err := idx.Get(ctx, "hours")
		if err != nil || !found {
			t.Fatalf("Expected to find entry, found=%v err=%v", found, err)
		}
		if got.Question != "hours" || got.Answer != "9 to 5" {
			t.Errorf("Unexpected entry: %+v", got)
		}

		if _, found, _ := idx.Get(ctx, "Hours"); found {
			t.Error("Lookup must use exact string identity")
		}
	})

	t.Run("NearestReturnsBest", func(t *testing.T) {
		_ = idx.Insert(ctx, types.Entry{Question: "address", Embedding: []float32{0, 1, 0}, Answer: "Main St"})
		_ = idx.Insert(ctx, types.Entry{Question: "products", Embedding: []float32{0, 0, 1}, Answer: "A, B, C"})

		match, found, err := idx.Nearest(ctx, []float32{0.1, 0.9, 0})
		if err != nil || !found {
			t.Fatalf("Expected a match, found=%v err=%v", found, err)
		}
		if match.Entry.Question != "address" {
			t.Errorf("Expected address, got %s", match.Entry.Question)
		}
		if match.Score <= 0.9 || match.Score > 1 {
			t.Errorf("Unexpected score %f", match.Score)
		}
	})

	t.Run("NegativeScores", func(t *testing.T) {
		match, found, _ := idx.Nearest(ctx, []float32{-1, -1, -1})
		if !found {
			t.Fatal("Expected a match even when every score is negative")
		}
		if match.Score >= 0 {
			t.Errorf("Expected negative best score, got %f", match.Score)
		}
		if match.Entry.Question != "hours" {
			t.Errorf("Expected first entry to win equal negative scores, got %s", match.Entry.Question)
		}
	})

	t.Run("OverwriteKeepsPosition", func(t *testing.T) {
		if err := idx.Insert(ctx, types.Entry{Question: "hours", Embedding: []float32{1, 0, 0}, Answer: "8 to 4"}); err != nil {
			t.Fatalf("Overwrite failed: %v", err)
		}
		if n, _ := idx.Len(ctx); n != 3 {
			t.Errorf("Overwrite must not grow the index, got %d", n)
		}
		entries, _ := idx.Entries(ctx)
		if entries[0].Question != "hours" || entries[0].Answer != "8 to 4" {
			t.Errorf("Expected replaced entry at position 0, got %+v", entries[0])
		}
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		err := idx.Insert(ctx, types.Entry{Question: "bad", Embedding: []float32{1, 0}, Answer: "x"})
		if !errors.Is(err, types.ErrDimensionMismatch) {
			t.Errorf("Expected ErrDimensionMismatch on insert, got %v", err)
		}
		_, _, err = idx.Nearest(ctx, []float32{1})
		if !errors.Is(err, types.ErrDimensionMismatch) {
			t.Errorf("Expected ErrDimensionMismatch on nearest, got %v", err)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		if err := idx.Reset(ctx); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		if n, _ := idx.Len(ctx); n != 0 {
			t.Errorf("Expected empty index after reset, got %d", n)
		}
		// learned dimension is forgotten
		if err := idx.Insert(ctx, types.Entry{Question: "two", Embedding: []float32{1, 0}, Answer: "2"}); err != nil {
			t.Errorf("Expected new dimension to be accepted after reset, got %v", err)
		}
	})
}

func TestIndexTieBreak(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(nil)

	// Both entries are at 45° to the query.
	_ = idx.Insert(ctx, types.Entry{Question: "first", Embedding: []float32{1, 0}, Answer: "1"})
	_ = idx.Insert(ctx, types.Entry{Question: "second", Embedding: []float32{0, 1}, Answer: "2"})

	for i := 0; i < 10; i++ {
		match, found, err := idx.Nearest(ctx, []float32{1, 1})
		if err != nil || !found {
			t.Fatalf("Expected a match, found=%v err=%v", found, err)
		}
		if match.Entry.Question != "first" {
			t.Fatalf("Expected earlier entry to win the tie, got %s", match.Entry.Question)
		}
	}
}

func TestIndexConfiguredDimensions(t *testing.T) {
	ctx := context.Background()
	idx, err := NewIndexFromConfig(types.BackendConfig{Dimensions: 3})
	if err != nil {
		t.Fatalf("NewIndexFromConfig failed: %v", err)
	}

	if err := idx.Insert(ctx, types.Entry{Question: "q", Embedding: []float32{1, 2}, Answer: "a"}); !errors.Is(err, types.ErrDimensionMismatch) {
		t.Errorf("Expected configured dimension to be enforced, got %v", err)
	}
	_ = idx.Reset(ctx)
	if err := idx.Insert(ctx, types.Entry{Question: "q", Embedding: []float32{1, 2}, Answer: "a"}); !errors.Is(err, types.ErrDimensionMismatch) {
		t.Errorf("Expected configured dimension to survive reset, got %v", err)
	}

	if _, err := NewIndexFromConfig(types.BackendConfig{Dimensions: -1}); err == nil {
		t.Error("Expected error for negative dimensions")
	}
}

func TestIndexCustomComparator(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(similarity.DotProductSimilarity)

	_ = idx.Insert(ctx, types.Entry{Question: "short", Embedding: []float32{1, 0}, Answer: "s"})
	_ = idx.Insert(ctx, types.Entry{Question: "long", Embedding: []float32{3, 0}, Answer: "l"})

	match, _, _ := idx.Nearest(ctx, []float32{1, 0})
	if match.Entry.Question != "long" {
		t.Errorf("Dot product should favour magnitude, got %s", match.Entry.Question)
	}
}

func TestIndexInsertCopiesEmbedding(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(nil)

	emb := []float32{1, 0}
	_ = idx.Insert(ctx, types.Entry{Question: "q", Embedding: emb, Answer: "a"})
	emb[0], emb[1] = 0, 1

	got, _, _ := idx.Get(ctx, "q")
	if got.Embedding[0] != 1 || got.Embedding[1] != 0 {
		t.Errorf("Index must not alias caller's slice, got %v", got.Embedding)
	}
}

func TestIndexConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(nil)
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			q := fmt.Sprintf("question-%d", i)
			emb := []float32{float32(i + 1), 1, float32(n - i)}
			if err := idx.Insert(ctx, types.Entry{Question: q, Embedding: emb, Answer: "answer-" + q}); err != nil {
				t.Errorf("Insert failed: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			_, _, _ = idx.Nearest(ctx, []float32{1, 1, 1})
		}()
	}
	wg.Wait()

	if got, _ := idx.Len(ctx); got != n {
		t.Fatalf("Expected %d entries, got %d", n, got)
	}

	for i := 0; i < n; i++ {
		q := fmt.Sprintf("question-%d", i)
		entry, found, _ := idx.Get(ctx, q)
		if !found {
			t.Fatalf("Missing entry %s", q)
		}
		if entry.Question != q || entry.Answer != "answer-"+q {
			t.Errorf("Cross-assigned entry for %s: %+v", q, entry)
		}
	}
}
