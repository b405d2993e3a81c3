// Package gemini implements the comparison oracle on Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/itemmatch/internal/domain"
	"github.com/kailas-cloud/itemmatch/internal/metrics"
)

const (
	providerName = "gemini"
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.0-flash"
)

// Config holds the Gemini provider settings.
type Config struct {
	APIKey  string
	BaseURL string // optional, for proxies and tests
	Model   string
	// JSONMode sets the response MIME type to application/json.
	JSONMode   bool
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Oracle calls models.generateContent once per comparison.
type Oracle struct {
	client   *genai.Client
	model    string
	jsonMode bool
	logger   *zap.Logger
}

// NewOracle creates a Gemini oracle. The client does no network I/O until the first call.
func NewOracle(ctx context.Context, cfg *Config) (*Oracle, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Oracle{
		client:   client,
		model:    model,
		jsonMode: cfg.JSONMode,
		logger:   logger,
	}, nil
}

// Complete implements domain.Oracle.
func (o *Oracle) Complete(ctx context.Context, instruction string) (domain.Completion, error) {
	var genCfg *genai.GenerateContentConfig
	if o.jsonMode {
		genCfg = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}

	start := time.Now()

	resp, err := o.client.Models.GenerateContent(ctx, o.model, genai.Text(instruction), genCfg)

	duration := time.Since(start)

	if err != nil {
		metrics.OracleRequestsTotal.WithLabelValues(providerName, o.model, "error").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Completion{}, fmt.Errorf("generate content: %w", ctxErr)
		}
		metrics.OracleErrorsTotal.WithLabelValues(providerName, o.model, "api_error").Inc()
		return domain.Completion{}, fmt.Errorf("generate content: %w: %w", domain.ErrOracleUnavailable, err)
	}

	text := resp.Text()
	if text == "" {
		metrics.OracleRequestsTotal.WithLabelValues(providerName, o.model, "error").Inc()
		metrics.OracleErrorsTotal.WithLabelValues(providerName, o.model, "empty_response").Inc()
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			o.logger.Warn("Gemini blocked the prompt",
				zap.String("model", o.model),
				zap.String("block_reason", string(resp.PromptFeedback.BlockReason)),
			)
		}
		return domain.Completion{}, fmt.Errorf("empty gemini response: %w", domain.ErrMalformedResponse)
	}

	metrics.OracleRequestsTotal.WithLabelValues(providerName, o.model, "success").Inc()
	metrics.OracleRequestDuration.WithLabelValues(providerName, o.model).Observe(duration.Seconds())

	var promptTokens, totalTokens int
	if u := resp.UsageMetadata; u != nil {
		promptTokens = int(u.PromptTokenCount)
		totalTokens = int(u.TotalTokenCount)
	}
	if totalTokens > 0 {
		metrics.OracleTokensTotal.WithLabelValues(providerName, o.model, "prompt").Add(float64(promptTokens))
		metrics.OracleTokensTotal.WithLabelValues(providerName, o.model, "total").Add(float64(totalTokens))
	}

	return domain.Completion{
		Text:         text,
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}

// HealthCheck fetches the configured model's metadata.
func (o *Oracle) HealthCheck(ctx context.Context) error {
	if _, err := o.client.Models.Get(ctx, o.model, nil); err != nil {
		return fmt.Errorf("get model %s: %w", o.model, err)
	}
	return nil
}
