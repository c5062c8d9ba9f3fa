package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1024

	// completionsPerSecond bounds outbound completion calls so a burst of
	// chat traffic does not blow through the provider's rate limit.
	completionsPerSecond = 5
	completionBurst      = 10
)

type OpenAIClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL") // e.g., "gpt-4o"
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAIClient{
		client:  openai.NewClient(apiKey),
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(completionsPerSecond), completionBurst),
	}, nil
}

// NewOpenAIClientWithConfig builds a client against a custom endpoint.
// Used by tests and by OpenAI-compatible local gateways.
func NewOpenAIClientWithConfig(apiKey, baseURL, model string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(completionsPerSecond), completionBurst),
	}
}

// Complete implements the LLMClient interface.
func (o *OpenAIClient) Complete(ctx context.Context, systemPrompt, userMessage string, params GenerationParams) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait canceled: %w", err)
	}

	slog.Debug("Generating completion via OpenAI", "model", o.model)
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: defaultTemperature,
	}
	maxTokens := defaultMaxTokens
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		maxTokens = *params.MaxTokens
	}
	req.MaxCompletionTokens = maxTokens
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices or empty content")
		return "", &ProviderError{Err: fmt.Errorf("OpenAI returned no choices")}
	}
	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// classify maps an OpenAI SDK error onto the package error taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, apiErr)
		case apiErr.HTTPStatusCode >= 500:
			return &ProviderError{StatusCode: apiErr.HTTPStatusCode, Err: apiErr}
		case apiErr.HTTPStatusCode >= 400:
			return &InvalidRequestError{StatusCode: apiErr.HTTPStatusCode, Err: apiErr}
		}
	}
	// Transport failures (connection refused, timeouts) are retryable.
	return &ProviderError{Err: err}
}
