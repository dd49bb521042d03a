package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/botirk38/semanticrouter/similarity"
	"github.com/botirk38/semanticrouter/types"
)

// Index implements IndexBackend as an append-only, linearly scanned
// collection guarded by a single RWMutex.
//
// Entries are never evicted. Nearest is O(N·D).
type Index struct {
	mu         sync.RWMutex
	entries    []types.Entry
	positions  map[string]int
	dimensions int
	configured int
	comparator similarity.SimilarityFunc
}

// NewIndex creates an empty in-memory index. A nil comparator selects cosine similarity.
func NewIndex(comparator similarity.SimilarityFunc) *Index {
	if comparator == nil {
		comparator = similarity.CosineSimilarity
	}
	return &Index{
		positions:  make(map[string]int),
		comparator: comparator,
	}
}

// NewIndexFromConfig creates an in-memory index, fixing D up front when config.Dimensions is set.
func NewIndexFromConfig(config types.BackendConfig) (*Index, error) {
	if config.Dimensions < 0 {
		return nil, fmt.Errorf("invalid dimensions %d", config.Dimensions)
	}
	idx := NewIndex(nil)
	idx.dimensions = config.Dimensions
	idx.configured = config.Dimensions
	return idx, nil
}

// Insert adds or replaces the entry for entry.Question.
func (x *Index) Insert(ctx context.Context, entry types.Entry) error {
	embedding := make([]float32, len(entry.Embedding))
	copy(embedding, entry.Embedding)
	entry.Embedding = embedding

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.checkDimensions(len(embedding)); err != nil {
		return err
	}
	if x.dimensions == 0 {
		x.dimensions = len(embedding)
	}

	// Replacing keeps the original position
	if pos, exists := x.positions[entry.Question]; exists {
		x.entries[pos] = entry
		return nil
	}

	x.positions[entry.Question] = len(x.entries)
	x.entries = append(x.entries, entry)
	return nil
}

// Nearest scans every entry and returns the one with the strictly greatest score.
func (x *Index) Nearest(ctx context.Context, query []float32) (types.Match, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.entries) == 0 {
		return types.Match{}, false, nil
	}
	if err := x.checkDimensions(len(query)); err != nil {
		return types.Match{}, false, err
	}

	best := -1
	var bestScore float32
	for i := range x.entries {
		score := x.comparator(query, x.entries[i].Embedding)
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}

	return types.Match{Entry: x.entries[best], Score: bestScore}, true, nil
}

// Get retrieves an entry by question
func (x *Index) Get(ctx context.Context, question string) (types.Entry, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if pos, ok := x.positions[question]; ok {
		return x.entries[pos], true, nil
	}
	return types.Entry{}, false, nil
}

// Len returns the number of entries
func (x *Index) Len(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return len(x.entries), nil
}

// Entries returns a copy of all entries in insertion order
func (x *Index) Entries(ctx context.Context) ([]types.Entry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]types.Entry, len(x.entries))
	copy(out, x.entries)
	return out, nil
}

// Reset clears all entries. A dimension fixed by configuration survives the reset.
func (x *Index) Reset(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.entries = nil
	x.positions = make(map[string]int)
	x.dimensions = x.configured
	return nil
}

// Close is a no-op for the in-memory index
func (x *Index) Close() error {
	return nil
}

// checkDimensions must be called with mu held.
func (x *Index) checkDimensions(n int) error {
	if x.dimensions != 0 && n != x.dimensions {
		return fmt.Errorf("%w: got %d, want %d", types.ErrDimensionMismatch, n, x.dimensions)
	}
	return nil
}
