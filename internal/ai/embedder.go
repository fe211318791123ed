package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

var ErrEmbedderUnavailable = errors.New("embedder is not configured")

// Embedder turns a query string into a vector for similarity ranking.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type EmbedderConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIEmbedder implements Embedder against any OpenAI-compatible
// embeddings API, including local embedding gateways.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
	timeout  time.Duration
}

func NewOpenAIEmbedder(config EmbedderConfig) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, ErrEmbedderUnavailable
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	token := strings.TrimSpace(config.APIKey)
	if token == "" {
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(strings.TrimSuffix(config.BaseURL, "/")),
		openai.WithToken(token),
		openai.WithEmbeddingModel(strings.TrimSpace(config.Model)),
		openai.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &OpenAIEmbedder{embedder: embedder, timeout: config.Timeout}, nil
}

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vector, err := e.embedder.EmbedQuery(callCtx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) == 0 {
		return nil, errors.New("embedder returned an empty vector")
	}
	return vector, nil
}
