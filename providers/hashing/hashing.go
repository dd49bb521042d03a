// Package hashing provides an offline embedding provider based on feature
// hashing. Texts that share words share vector components, which is enough
// to exercise the router without a network dependency.
package hashing

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

const DefaultDimensions = 512

// Provider hashes each lowercased word and each adjacent word pair into a
// fixed number of buckets with a signed count.
type Provider struct {
	dimensions int
}

// NewProvider creates a hashing provider. Non-positive dimensions use DefaultDimensions.
func NewProvider(dimensions int) *Provider {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Provider{dimensions: dimensions}
}

// Dimensions returns the vector length produced by EmbedText.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// EmbedText never fails. Text without any letters or digits maps to the zero vector.
func (p *Provider) EmbedText(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dimensions)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for i, w := range words {
		p.add(vec, w, 1)
		if i > 0 {
			p.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	return vec, nil
}

func (p *Provider) add(vec []float32, feature string, weight float32) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum32()

	// low bits pick the bucket, the top bit picks the sign
	idx := int(sum % uint32(p.dimensions))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func (p *Provider) Close() {}
