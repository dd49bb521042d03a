// Package openai answers questions with the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/botirk38/semanticrouter/fallback"
	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const DefaultModel = openai.ChatModelGPT4oMini

// Config configures the OpenAI generator
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// MaxTokens caps the completion length when positive.
	MaxTokens int

	HTTPClient *http.Client
}

// Generator sends the question as a single user message.
type Generator struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// New creates an OpenAI generator. An empty API key yields a generator that
// answers every call with ReasonNotConfigured.
func New(config Config) *Generator {
	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	g := &Generator{model: model, maxTokens: config.MaxTokens}
	if config.APIKey == "" {
		return g
	}

	// one attempt per miss; the router bounds the call with its own deadline
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

	client := openai.NewClient(opts...)
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

	params := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(question),
		},
	}
	if g.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(g.maxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return fallback.Fail(fallback.ReasonStatus, fmt.Errorf("openai returned %d: %w", apiErr.StatusCode, err))
		}
		return fallback.Fail(fallback.Classify(err), err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return fallback.Fail(fallback.ReasonMalformed, fallback.ErrEmptyAnswer)
	}
	return fallback.Ok(resp.Choices[0].Message.Content)
}
