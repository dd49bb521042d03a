// Package similarity provides similarity functions for comparing embedding vectors.
package similarity

// SimilarityFunc represents a function that computes similarity between two embedding vectors.
// Higher values indicate greater similarity.
type SimilarityFunc func(a, b []float32) float32
