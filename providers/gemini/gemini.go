// Package gemini embeds text with Google's Gemini embedding models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultModel   = "text-embedding-004"
	defaultTimeout = 30 * time.Second
)

// Config provides configuration options for the Gemini embedding provider
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API endpoint.
	BaseURL string

	// Dimensions truncates the output vector when positive.
	Dimensions int

	// Timeout bounds each HTTP request; zero uses 30s.
	Timeout time.Duration

	HTTPClient *http.Client
}

// Provider uses the Gemini API to embed text.
type Provider struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewProvider creates an embedding provider for Gemini.
// If the API key is empty, GEMINI_API_KEY is used.
func NewProvider(ctx context.Context, config Config) (*Provider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return nil, errors.New("Gemini API key is required")
		}
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: config.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Provider{client: client, model: model, dimensions: config.Dimensions}, nil
}

// EmbedText sends the embedding request to Gemini.
func (p *Provider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("cannot embed empty text")
	}

	var cfg *genai.EmbedContentConfig
	if p.dimensions > 0 {
		dims := int32(p.dimensions)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("no embedding returned by Gemini")
	}

	return resp.Embeddings[0].Values, nil
}

func (p *Provider) Close() {}
