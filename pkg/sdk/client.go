package itemmatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/itemmatch/internal/domain"
	"github.com/kailas-cloud/itemmatch/internal/domain/comparison/match"
	"github.com/kailas-cloud/itemmatch/internal/domain/comparison/request"
	"github.com/kailas-cloud/itemmatch/internal/transport/gemini"
	openaiTransport "github.com/kailas-cloud/itemmatch/internal/transport/openai"
	comparisonuc "github.com/kailas-cloud/itemmatch/internal/usecase/comparison"
	healthuc "github.com/kailas-cloud/itemmatch/internal/usecase/health"
	oracleuc "github.com/kailas-cloud/itemmatch/internal/usecase/oracle"
)

const customProvider = "custom"

// Internal interfaces for substitution in tests.
type comparisonUseCase interface {
	Compare(ctx context.Context, req *request.Request) (match.Result, error)
}

// Match is one pair of items judged similar by the oracle.
type Match struct {
	Item1      string
	Item2      string
	Similarity float64
}

// Result is the outcome of one comparison.
type Result struct {
	Matches     []Match // oracle order, never nil
	TotalTokens int     // 0 when the oracle was not called
}

// Client is the itemmatch SDK entry point. It is safe for concurrent use.
type Client struct {
	svc       comparisonUseCase
	healthSvc healthUseCase
	maxItems  int
	obs       *observer
}

// New creates a Client. The context is only used while constructing the provider client.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: oracleuc.DefaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.maxItems < 0 {
		return nil, errors.New("itemmatch: max items must not be negative")
	}
	if cfg.rps < 0 {
		return nil, errors.New("itemmatch: rate limit must not be negative")
	}

	base, provider, model, err := createOracle(ctx, cfg)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return wireClient(base, provider, model, cfg, obs), nil
}

func createOracle(ctx context.Context, cfg *clientConfig) (domain.Oracle, string, string, error) {
	if cfg.oracle != nil {
		return &oracleAdapter{inner: cfg.oracle}, customProvider, customProvider, nil
	}
	if cfg.provider == nil {
		return nil, "", "", errors.New("itemmatch: oracle required (use WithOracle, WithOpenAI or WithGemini)")
	}

	p := cfg.provider
	switch p.name {
	case "openai":
		if p.model == "" {
			return nil, "", "", errors.New("itemmatch: openai model is required")
		}
		o := openaiTransport.NewOracle(&openaiTransport.Config{
			APIKey:   p.apiKey,
			BaseURL:  p.baseURL,
			Model:    p.model,
			JSONMode: cfg.jsonMode,
		})
		return o, p.name, p.model, nil
	case "gemini":
		o, err := gemini.NewOracle(ctx, &gemini.Config{
			APIKey:   p.apiKey,
			BaseURL:  p.baseURL,
			Model:    p.model,
			JSONMode: cfg.jsonMode,
		})
		if err != nil {
			return nil, "", "", fmt.Errorf("itemmatch: create gemini oracle: %w", err)
		}
		model := p.model
		if model == "" {
			model = gemini.DefaultModel
		}
		return o, p.name, model, nil
	default:
		return nil, "", "", fmt.Errorf("itemmatch: unknown provider %q", p.name)
	}
}

func wireClient(base domain.Oracle, provider, model string, cfg *clientConfig, obs *observer) *Client {
	var limiter *rate.Limiter
	if cfg.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.rps), max(cfg.burst, 1))
	}

	oracle := oracleuc.NewInstrumentedOracle(base, provider, model, oracleuc.Options{
		Timeout: cfg.timeout,
		Limiter: limiter,
	}, zap.NewNop())

	// Health only probes providers that expose a check.
	var checker healthuc.OracleChecker
	switch {
	case cfg.oracle != nil:
		if hc, ok := cfg.oracle.(domain.HealthChecker); ok {
			checker = hc
		}
	default:
		if hc, ok := base.(domain.HealthChecker); ok {
			checker = hc
		}
	}

	return &Client{
		svc:       comparisonuc.New(oracle),
		healthSvc: healthuc.New(checker, nil),
		maxItems:  cfg.maxItems,
		obs:       obs,
	}
}

// Compare returns the pairs of items1 x items2 the oracle scores at or above
// threshold. Nil lists are treated as empty. An empty list returns no matches
// without calling the oracle.
//
// Errors wrap one of the Err* sentinels; see Kind and Retryable.
func (c *Client) Compare(ctx context.Context, items1, items2 []string, threshold float64) (res Result, err error) {
	start := time.Now()
	defer func() { c.obs.observeCompare(start, res, err) }()

	req, err := request.New(nonNil(items1), nonNil(items2), threshold, c.maxItems)
	if err != nil {
		return Result{}, domain.Fail(err)
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	r, err := c.svc.Compare(ctx, &req)
	if err != nil {
		return Result{}, err
	}

	matches := make([]Match, 0, r.Len())
	for _, m := range r.Matches() {
		matches = append(matches, Match{Item1: m.Item1(), Item2: m.Item2(), Similarity: m.Similarity()})
	}
	return Result{Matches: matches, TotalTokens: usage.TotalTokens}, nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
