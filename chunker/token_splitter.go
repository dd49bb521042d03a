package chunker

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenSplitter implements Splitter with tiktoken's cl100k_base encoding,
// the encoding used by OpenAI's embedding models.
type TokenSplitter struct {
	config   Config
	encoding tokenizer.Codec
}

// NewTokenSplitter validates config and loads the encoding.
func NewTokenSplitter(config Config) (*TokenSplitter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid splitter config: %w", err)
	}

	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tokenizer: %w", err)
	}

	return &TokenSplitter{config: config, encoding: enc}, nil
}

// Count returns the number of tokens in text.
func (s *TokenSplitter) Count(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	ids, _, err := s.encoding.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTokenizerFailed, err)
	}
	return len(ids), nil
}

// Split slides a WindowSize window with stride WindowSize-Overlap over the
// token stream. The last window may be shorter.
func (s *TokenSplitter) Split(text string) ([]Window, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	ids, _, err := s.encoding.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenizerFailed, err)
	}

	total := len(ids)
	if total <= s.config.MaxTokens {
		return []Window{{Text: text, Start: 0, End: total}}, nil
	}

	stride := s.config.WindowSize - s.config.Overlap
	var windows []Window

	for start := 0; start < total; start += stride {
		end := min(start+s.config.WindowSize, total)

		part, err := s.encoding.Decode(ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to decode window %d: %w", len(windows), err)
		}
		windows = append(windows, Window{Text: part, Start: start, End: end})

		if end == total {
			break
		}
	}

	return windows, nil
}
