package similarity

// DotProductSimilarity computes the dot product between two vectors.
// It equals cosine similarity only when both inputs are unit length.
func DotProductSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	return float32(dot)
}
