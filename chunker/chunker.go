// Package chunker splits over-long embedding inputs into token windows and
// pools the per-window embeddings back into one vector.
package chunker

import "errors"

var (
	// ErrInvalidWindowSize indicates the window size is not positive
	ErrInvalidWindowSize = errors.New("window size must be positive")

	// ErrWindowExceedsMax indicates the window size exceeds max tokens
	ErrWindowExceedsMax = errors.New("window size cannot exceed max tokens")

	// ErrInvalidOverlap indicates a negative overlap
	ErrInvalidOverlap = errors.New("overlap must be non-negative")

	// ErrOverlapTooLarge indicates overlap is >= window size
	ErrOverlapTooLarge = errors.New("overlap must be less than window size")

	// ErrInvalidMaxTokens indicates max tokens is not positive
	ErrInvalidMaxTokens = errors.New("max tokens must be positive")

	// ErrEmptyText indicates there is nothing to split
	ErrEmptyText = errors.New("cannot split empty text")

	// ErrTokenizerFailed indicates tokenization failed
	ErrTokenizerFailed = errors.New("tokenization failed")

	// ErrNoVectors indicates Pool was called with nothing to pool
	ErrNoVectors = errors.New("no vectors to pool")
)

// Splitter turns text into windows that each fit an embedding model's input limit.
type Splitter interface {
	// Count returns the number of tokens in text.
	Count(text string) (int, error)

	// Split returns text unchanged as a single window when it fits MaxTokens,
	// otherwise overlapping windows of at most WindowSize tokens.
	Split(text string) ([]Window, error)
}

// Config holds the token limits for splitting.
type Config struct {
	// MaxTokens is the model input limit. Text at or under it is not split.
	MaxTokens int

	// WindowSize is the number of tokens per window once splitting is needed.
	WindowSize int

	// Overlap is the number of tokens shared by consecutive windows.
	Overlap int
}

// Window is one slice of the original text.
type Window struct {
	Text string

	// Start and End are token offsets into the original text, End exclusive.
	Start int
	End   int
}

// Tokens returns the window length in tokens.
func (w Window) Tokens() int {
	return w.End - w.Start
}

// DefaultConfig matches the input limit of the OpenAI text-embedding-3 models.
func DefaultConfig() Config {
	return Config{
		MaxTokens:  8191,
		WindowSize: 2048,
		Overlap:    128,
	}
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return ErrInvalidMaxTokens
	}
	if c.WindowSize <= 0 {
		return ErrInvalidWindowSize
	}
	if c.WindowSize > c.MaxTokens {
		return ErrWindowExceedsMax
	}
	if c.Overlap < 0 {
		return ErrInvalidOverlap
	}
	if c.Overlap >= c.WindowSize {
		return ErrOverlapTooLarge
	}
	return nil
}
