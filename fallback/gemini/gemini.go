// Package gemini answers questions with Google's Gemini generateContent API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/botirk38/semanticrouter/fallback"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-1.5-flash"

// Config configures the Gemini generator
type Config struct {
	APIKey  string
	Model   string
	BaseURL string

	HTTPClient *http.Client
}

// Generator sends the question as a single user turn and returns the text
// of the first candidate.
type Generator struct {
	client *genai.Client
	model  string
}

// New creates a Gemini generator. An empty API key is not an error: the
// generator then answers every call with ReasonNotConfigured.
func New(ctx context.Context, config Config) (*Generator, error) {
	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	g := &Generator{model: model}
	if config.APIKey == "" {
		return g, nil
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      config.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: config.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return g, nil
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

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(question), nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return fallback.Fail(fallback.ReasonStatus, fmt.Errorf("gemini returned %d: %w", apiErr.Code, err))
		}
		return fallback.Fail(fallback.Classify(err), err)
	}

	answer := resp.Text()
	if strings.TrimSpace(answer) == "" {
		return fallback.Fail(fallback.ReasonMalformed, fallback.ErrEmptyAnswer)
	}
	return fallback.Ok(answer)
}
