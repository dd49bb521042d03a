package chunker

import (
	"fmt"

	"github.com/botirk38/semanticrouter/types"
)

// Pool averages vectors component-wise, weighting each by the token length
// of its window. A window with zero tokens counts once.
func Pool(vectors [][]float32, windows []Window) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, ErrNoVectors
	}
	if len(windows) != len(vectors) {
		return nil, fmt.Errorf("got %d vectors for %d windows", len(vectors), len(windows))
	}

	dim := len(vectors[0])
	sums := make([]float64, dim)
	var total float64

	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d components, want %d", types.ErrDimensionMismatch, i, len(v), dim)
		}
		w := float64(max(windows[i].Tokens(), 1))
		for j, x := range v {
			sums[j] += w * float64(x)
		}
		total += w
	}

	pooled := make([]float32, dim)
	for j := range sums {
		pooled[j] = float32(sums[j] / total)
	}
	return pooled, nil
}
