package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var ErrGeneratorUnavailable = errors.New("text generator is not configured")

// GenerateRequest describes one completion call.
type GenerateRequest struct {
	Model           string
	Instructions    string
	Input           string
	Temperature     float64
	MaxOutputTokens int
}

// GenerateResult carries the model output text.
type GenerateResult struct {
	Text    string
	ModelID string
}

// TextGenerator produces text completions. GenerateStream invokes onDelta
// with the accumulated text every time a new chunk arrives.
type TextGenerator interface {
	Generate(ctx context.Context, request GenerateRequest) (GenerateResult, error)
	GenerateStream(ctx context.Context, request GenerateRequest, onDelta func(accumulated string)) (GenerateResult, error)
}

type ClientConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	MaxRetries   int
}

// Client implements TextGenerator against any OpenAI-compatible chat API
// (OpenRouter in production).
type Client struct {
	llm        *openai.LLM
	timeout    time.Duration
	maxRetries int
	available  bool
}

func NewClient(config ClientConfig) (*Client, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://openrouter.ai/api/v1"
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	token := strings.TrimSpace(config.APIKey)
	available := token != ""
	if token == "" {
		// langchaingo rejects empty tokens; local gateways ignore the value.
		token = "none"
	}

	llm, err := openai.New(
		openai.WithBaseURL(strings.TrimSuffix(config.BaseURL, "/")),
		openai.WithToken(token),
		openai.WithModel(strings.TrimSpace(config.DefaultModel)),
		openai.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	return &Client{
		llm:        llm,
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		available:  available,
	}, nil
}

func (c *Client) Available() bool {
	return c.available
}

func (c *Client) Generate(ctx context.Context, request GenerateRequest) (GenerateResult, error) {
	return c.generate(ctx, request, nil)
}

func (c *Client) GenerateStream(
	ctx context.Context,
	request GenerateRequest,
	onDelta func(accumulated string),
) (GenerateResult, error) {
	return c.generate(ctx, request, onDelta)
}

func (c *Client) generate(
	ctx context.Context,
	request GenerateRequest,
	onDelta func(accumulated string),
) (GenerateResult, error) {
	if !c.available {
		return GenerateResult{}, ErrGeneratorUnavailable
	}
	if strings.TrimSpace(request.Model) == "" {
		return GenerateResult{}, errors.New("model is required")
	}
	if strings.TrimSpace(request.Input) == "" {
		return GenerateResult{}, errors.New("input is required")
	}

	content := make([]llms.MessageContent, 0, 2)
	if strings.TrimSpace(request.Instructions) != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, strings.TrimSpace(request.Instructions)))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, request.Input))

	options := []llms.CallOption{
		llms.WithModel(request.Model),
		llms.WithTemperature(request.Temperature),
	}
	if request.MaxOutputTokens > 0 {
		options = append(options, llms.WithMaxTokens(request.MaxOutputTokens))
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		result, callErr := c.call(ctx, request.Model, content, options, onDelta)
		if callErr == nil {
			return result, nil
		}
		lastErr = callErr

		if attempt == c.maxRetries || ctx.Err() != nil {
			break
		}
		backoff := time.Duration(350*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return GenerateResult{}, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown completion error")
	}
	return GenerateResult{}, lastErr
}

func (c *Client) call(
	ctx context.Context,
	model string,
	content []llms.MessageContent,
	options []llms.CallOption,
	onDelta func(accumulated string),
) (GenerateResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var accumulated strings.Builder
	callOptions := options
	if onDelta != nil {
		callOptions = append(callOptions, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			accumulated.Write(chunk)
			onDelta(accumulated.String())
			return nil
		}))
	}

	response, err := c.llm.GenerateContent(callCtx, content, callOptions...)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate content: %w", err)
	}
	if len(response.Choices) == 0 {
		return GenerateResult{}, errors.New("completion response without choices")
	}

	text := strings.TrimSpace(response.Choices[0].Content)
	if text == "" && accumulated.Len() > 0 {
		text = strings.TrimSpace(accumulated.String())
	}
	if text == "" {
		return GenerateResult{}, errors.New("completion response without text output")
	}
	return GenerateResult{Text: text, ModelID: model}, nil
}

// GenerateWithProfile runs a completion with the profile's primary model and
// retries once with the fallback model when the primary fails.
func GenerateWithProfile(
	ctx context.Context,
	generator TextGenerator,
	profile ModelProfile,
	instructions string,
	input string,
	onDelta func(accumulated string),
) (GenerateResult, error) {
	request := GenerateRequest{
		Model:           profile.PrimaryModel,
		Instructions:    instructions,
		Input:           input,
		Temperature:     profile.Temperature,
		MaxOutputTokens: profile.MaxOutputTokens,
	}

	var (
		result GenerateResult
		err    error
	)
	if onDelta != nil {
		result, err = generator.GenerateStream(ctx, request, onDelta)
	} else {
		result, err = generator.Generate(ctx, request)
	}
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil || strings.TrimSpace(profile.FallbackModel) == "" || profile.FallbackModel == profile.PrimaryModel {
		return GenerateResult{}, err
	}

	request.Model = profile.FallbackModel
	if onDelta != nil {
		return generator.GenerateStream(ctx, request, onDelta)
	}
	return generator.Generate(ctx, request)
}
