package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/botirk38/semanticrouter/chunker"
	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const (
	DefaultOpenAIModel = openai.EmbeddingModelTextEmbedding3Small
	defaultTimeout     = 30 * time.Second
)

// openAIModelLimits is the input limit in tokens per embedding model.
var openAIModelLimits = map[string]int{
	openai.EmbeddingModelTextEmbedding3Small: 8191,
	openai.EmbeddingModelTextEmbedding3Large: 8191,
	openai.EmbeddingModelTextEmbeddingAda002: 8191,
}

// OpenAIProvider uses OpenAI's API to embed text.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	dimensions int
	splitter   chunker.Splitter
}

// OpenAIConfig provides configuration options for OpenAI embedding provider
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	OrgID   string
	Model   string

	// Dimensions asks text-embedding-3 models for shortened vectors; zero keeps the model default.
	Dimensions int

	// Timeout bounds each HTTP request; zero uses 30s.
	Timeout time.Duration

	// MaxRetries overrides the SDK retry count when non-nil.
	MaxRetries *int

	HTTPClient *http.Client
}

// NewOpenAIProvider creates an embedding provider for OpenAI.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, errors.New("OpenAI API key is required")
		}
	}

	model := config.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(config.BaseURL, "/")+"/"))
	}

	if config.OrgID != "" {
		opts = append(opts, option.WithOrganization(config.OrgID))
	}

	if config.MaxRetries != nil {
		opts = append(opts, option.WithMaxRetries(*config.MaxRetries))
	}

	p := &OpenAIProvider{model: model, dimensions: config.Dimensions}

	splitConfig := chunker.DefaultConfig()
	splitConfig.MaxTokens = p.GetMaxTokens()
	splitter, err := chunker.NewTokenSplitter(splitConfig)
	if err != nil {
		return nil, err
	}
	p.splitter = splitter

	client := openai.NewClient(opts...)
	p.client = &client
	return p, nil
}

// GetMaxTokens returns the model's input limit, 8191 for unknown models.
func (p *OpenAIProvider) GetMaxTokens() int {
	if limit, ok := openAIModelLimits[p.model]; ok {
		return limit
	}
	return 8191
}

// EmbedText sends the embedding request to OpenAI. Text over the model
// limit is split into windows, embedded in one batch and pooled.
func (p *OpenAIProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("cannot embed empty text")
	}

	windows, err := p.splitter.Split(text)
	if err != nil {
		return nil, err
	}

	inputs := make([]string, len(windows))
	for i, w := range windows {
		inputs[i] = w.Text
	}

	vectors, err := p.embed(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 1 {
		return vectors[0], nil
	}
	return chunker.Pool(vectors, windows)
}

func (p *OpenAIProvider) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if p.dimensions > 0 {
		params.Dimensions = openai.Int(int64(p.dimensions))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d inputs", len(resp.Data), len(inputs))
	}

	// OpenAI returns []float64; convert to []float32, ordered by index
	vectors := make([][]float32, len(inputs))
	for _, data := range resp.Data {
		if data.Index < 0 || int(data.Index) >= len(inputs) {
			return nil, fmt.Errorf("OpenAI returned out of range index %d", data.Index)
		}
		embedding := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			embedding[i] = float32(v)
		}
		vectors[data.Index] = embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("no embedding returned by OpenAI for input %d", i)
		}
	}
	return vectors, nil
}

func (p *OpenAIProvider) Close() {}
