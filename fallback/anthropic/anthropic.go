// Package anthropic answers questions with the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/botirk38/semanticrouter/fallback"
)

const (
	DefaultModel     = string(anthropic.ModelClaude3_5HaikuLatest)
	defaultMaxTokens = 1024
)

// Config configures the Anthropic generator
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int

	HTTPClient *http.Client
}

// Generator sends the question as a single user turn and joins the text
// blocks of the reply.
type Generator struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// New creates an Anthropic generator. An empty API key yields a generator
// that answers every call with ReasonNotConfigured.
func New(config Config) *Generator {
	g := &Generator{
		model:     config.Model,
		maxTokens: int64(config.MaxTokens),
	}
	if g.model == "" {
		g.model = DefaultModel
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	if config.APIKey == "" {
		return g
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(config.BaseURL, "/")+"/"))
	}
	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}

	client := anthropic.NewClient(opts...)
	g.client = &client
	return g
}

// Configured reports whether the generator holds credentials.
func (g *Generator) Configured() bool {
	return g.client != nil
}

// Generate implements fallback.Generator.
func (g *Generator) Generate(ctx context.Context, question string) fallback.Result {
	if g.client == nil {
		return fallback.Fail(fallback.ReasonNotConfigured, fallback.ErrNotConfigured)
	}

	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(question)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return fallback.Fail(fallback.ReasonStatus, fmt.Errorf("anthropic returned %d: %w", apiErr.StatusCode, err))
		}
		return fallback.Fail(fallback.Classify(err), err)
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	answer := strings.Join(parts, "\n")
	if strings.TrimSpace(answer) == "" {
		return fallback.Fail(fallback.ReasonMalformed, fallback.ErrEmptyAnswer)
	}
	return fallback.Ok(answer)
}
