package types

import (
	"context"
	"errors"
	"time"
)

// ErrDimensionMismatch is returned when an embedding's length differs from
// the dimension already established by the index.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Entry holds a question, its embedding and the canonical answer.
type Entry struct {
	Question  string
	Embedding []float32
	Answer    string
}

// Match is the result of a nearest-neighbour scan.
type Match struct {
	Entry Entry
	Score float32
}

// IndexBackend defines the storage for question entries.
// This allows the similarity index to live in process memory, Redis or Postgres.
type IndexBackend interface {
	// Insert adds an entry, silently replacing any entry with the same question.
	// A replaced entry keeps its original position in iteration order.
	Insert(ctx context.Context, entry Entry) error

	// Nearest returns the entry with the strictly greatest similarity to query.
	// Ties are resolved in favour of the entry inserted first.
	// found is false when the index is empty.
	Nearest(ctx context.Context, query []float32) (match Match, found bool, err error)

	// Get retrieves an entry by its exact question text
	Get(ctx context.Context, question string) (Entry, bool, error)

	// Len returns the number of entries
	Len(ctx context.Context) (int, error)

	// Entries returns a snapshot of every entry in insertion order
	Entries(ctx context.Context) ([]Entry, error)

	// Reset removes every entry
	Reset(ctx context.Context) error

	// Close releases resources held by the backend
	Close() error
}

// BackendConfig provides configuration options for backends
type BackendConfig struct {
	// For Redis
	ConnectionString string
	Username         string
	Password         string
	Database         int
	Prefix           string

	// For Postgres
	DSN       string
	TableName string

	// Dimensions is the embedding length D, used where the storage schema needs it.
	Dimensions int

	// Timeout bounds individual remote calls; zero means no bound.
	Timeout time.Duration
}

// BackendType represents the type of index backend
type BackendType string

const (
	BackendMemory   BackendType = "memory"
	BackendRedis    BackendType = "redis"
	BackendPostgres BackendType = "postgres"
)

// EmbeddingProvider defines the interface all embedding providers must satisfy.
type EmbeddingProvider interface {
	// EmbedText turns a piece of text into its embedding vector.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// Close frees any resources held by the provider.
	Close()
}

// ProviderType represents the type of embedding provider
type ProviderType string

const (
	ProviderOpenAI  ProviderType = "openai"
	ProviderGemini  ProviderType = "gemini"
	ProviderHashing ProviderType = "hashing"
)
