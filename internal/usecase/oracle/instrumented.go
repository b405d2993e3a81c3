package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/itemmatch/internal/domain"
	"github.com/kailas-cloud/itemmatch/internal/metrics"
)

// DefaultTimeout bounds a single oracle round trip when none is configured.
const DefaultTimeout = 60 * time.Second

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	Windows() []BudgetWindow
}

// Options tune an InstrumentedOracle. Zero values disable the feature.
type Options struct {
	Timeout time.Duration
	Limiter *rate.Limiter
	Budget  BudgetChecker
}

// InstrumentedOracle wraps a provider with a bounded wait, rate limiting,
// budget enforcement and logging. Transport metrics (requests, duration, tokens)
// are recorded by the provider itself.
type InstrumentedOracle struct {
	inner    domain.Oracle
	provider string
	model    string
	timeout  time.Duration
	limiter  *rate.Limiter
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumentedOracle wraps inner. The result is immutable and safe for concurrent use.
func NewInstrumentedOracle(
	inner domain.Oracle, provider, model string, opts Options, logger *zap.Logger,
) *InstrumentedOracle {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &InstrumentedOracle{
		inner:    inner,
		provider: provider,
		model:    model,
		timeout:  timeout,
		limiter:  opts.Limiter,
		budget:   opts.Budget,
		logger:   logger,
	}
}

// Complete checks budget and rate limit, then runs one bounded round trip.
func (p *InstrumentedOracle) Complete(ctx context.Context, instruction string) (domain.Completion, error) {
	if p.budget != nil {
		if err := p.budget.Check(ctx); err != nil {
			p.logger.Error("Budget exceeded",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Error(err),
			)
			return domain.Completion{}, fmt.Errorf("budget check: %w", err)
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.Completion{}, fmt.Errorf("rate limit wait: %w", ctxErr)
			}
			// Wait refuses up front when the reservation would outlive ctx's deadline.
			p.recordError("rate_limited")
			return domain.Completion{}, fmt.Errorf("rate limit wait: %w: %w", domain.ErrOracleTimeout, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	result, err := p.inner.Complete(callCtx, instruction)
	duration := time.Since(start)

	if err != nil {
		err = p.classify(ctx, callCtx, err)
		p.logger.Error("Oracle request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Duration("timeout", p.timeout),
			zap.Error(err),
		)
		return domain.Completion{}, fmt.Errorf("complete: %w", err)
	}

	p.recordBudget(result.TotalTokens)

	p.logger.Debug("Oracle request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("response_bytes", len(result.Text)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// classify decides who ended a failed call: the caller, our own deadline, or the transport.
func (p *InstrumentedOracle) classify(parent, call context.Context, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		// Only the caller's error stays in the chain.
		return fmt.Errorf("%w (%v)", parentErr, err)
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) {
		p.recordError("timeout")
		return fmt.Errorf("no answer within %s: %w", p.timeout, domain.ErrOracleTimeout)
	}
	if errors.Is(err, domain.ErrOracleUnavailable) || errors.Is(err, domain.ErrMalformedResponse) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrOracleUnavailable, err)
}

func (p *InstrumentedOracle) recordError(errType string) {
	metrics.OracleErrorsTotal.WithLabelValues(p.provider, p.model, errType).Inc()
}

func (p *InstrumentedOracle) recordBudget(totalTokens int) {
	if p.budget == nil || totalTokens <= 0 {
		return
	}
	p.budget.Record(int64(totalTokens))
	for _, w := range p.budget.Windows() {
		metrics.OracleBudgetTokensRemaining.WithLabelValues(p.provider, w.Period).Set(float64(w.Remaining))
	}
}
