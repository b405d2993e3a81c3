package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/itemmatch/internal/domain"
	"github.com/kailas-cloud/itemmatch/internal/metrics"
)

// Oracle is a text-generation oracle on the OpenAI-compatible chat completions API.
type Oracle struct {
	client   *openai.Client
	model    string
	jsonMode bool
	user     string
	provider string
	logger   *zap.Logger
}

// Config holds the chat provider settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	User     string
	Provider string
	// JSONMode asks the endpoint for a JSON object response. Not every compatible
	// endpoint supports it.
	JSONMode bool
	Logger   *zap.Logger
}

// NewOracle creates an OpenAI-compatible oracle.
func NewOracle(cfg *Config) *Oracle {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Oracle{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		jsonMode: cfg.JSONMode,
		user:     cfg.User,
		provider: provider,
		logger:   logger,
	}
}

// Complete implements domain.Oracle with one chat completion round trip.
func (o *Oracle) Complete(ctx context.Context, instruction string) (domain.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: instruction},
		},
		User: o.user,
	}
	if o.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.OracleRequestsTotal.WithLabelValues(o.provider, o.model, "error").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Completion{}, fmt.Errorf("chat completion: %w", ctxErr)
		}
		metrics.OracleErrorsTotal.WithLabelValues(o.provider, o.model, "api_error").Inc()
		return domain.Completion{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.OracleRequestsTotal.WithLabelValues(o.provider, o.model, "error").Inc()
		metrics.OracleErrorsTotal.WithLabelValues(o.provider, o.model, "empty_response").Inc()
		return domain.Completion{}, fmt.Errorf("empty chat completion: %w", domain.ErrMalformedResponse)
	}

	metrics.OracleRequestsTotal.WithLabelValues(o.provider, o.model, "success").Inc()
	metrics.OracleRequestDuration.WithLabelValues(o.provider, o.model).Observe(duration.Seconds())

	promptTokens := resp.Usage.PromptTokens
	totalTokens := resp.Usage.TotalTokens
	if totalTokens > 0 {
		metrics.OracleTokensTotal.WithLabelValues(o.provider, o.model, "prompt").Add(float64(promptTokens))
		metrics.OracleTokensTotal.WithLabelValues(o.provider, o.model, "total").Add(float64(totalTokens))
	}

	if reason := resp.Choices[0].FinishReason; reason == openai.FinishReasonLength {
		o.logger.Warn("Chat completion truncated",
			zap.String("model", o.model),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)
	}

	return domain.Completion{
		Text:         resp.Choices[0].Message.Content,
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (o *Oracle) HealthCheck(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors wrap domain.ErrOracleUnavailable.
func parseAPIError(err error) error {
	wrap := domain.ErrOracleUnavailable

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("chat API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("chat API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	return fmt.Errorf("chat request failed: %w: %w", wrap, err)
}

// extractDetail reads the "detail" field some compatible gateways return instead of "error".
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
