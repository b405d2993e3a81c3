package comparison

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/itemmatch/internal/domain"
	"github.com/kailas-cloud/itemmatch/internal/domain/comparison/match"
	"github.com/kailas-cloud/itemmatch/internal/domain/comparison/request"
	logpkg "github.com/kailas-cloud/itemmatch/internal/logger"
	"github.com/kailas-cloud/itemmatch/internal/metrics"
)

// maxExcerpt bounds how much raw oracle text reaches the debug log.
const maxExcerpt = 512

// Service runs the comparison pipeline: instruction, oracle round trip,
// extraction, validation, threshold filter, assembly. It holds no per-call state.
type Service struct {
	oracle Oracle
}

// New creates a comparison service.
func New(oracle Oracle) *Service {
	return &Service{oracle: oracle}
}

// Compare returns the threshold-filtered matches for req.
// Every error is a *domain.Failure; use errors.Is with the domain sentinels
// or inspect Kind to tell transport failures from semantic ones.
func (s *Service) Compare(ctx context.Context, req *request.Request) (match.Result, error) {
	start := time.Now()

	res, err := s.compare(ctx, req)

	metrics.ComparisonDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		err = domain.Fail(err)
		metrics.ComparisonsTotal.WithLabelValues(string(domain.KindOf(err))).Inc()
		return match.Result{}, err
	}

	metrics.ComparisonsTotal.WithLabelValues("ok").Inc()
	metrics.ComparisonMatchesTotal.Add(float64(res.Len()))
	return res, nil
}

func (s *Service) compare(ctx context.Context, req *request.Request) (match.Result, error) {
	log := logpkg.FromContext(ctx)

	if req.Trivial() {
		log.Debug("Comparison skipped: empty list",
			zap.Int("items1", len(req.Items1())),
			zap.Int("items2", len(req.Items2())),
		)
		return match.NewResult(nil), nil
	}

	instruction, err := BuildInstruction(req)
	if err != nil {
		return match.Result{}, fmt.Errorf("build instruction: %w", err)
	}

	completion, err := s.oracle.Complete(ctx, instruction)
	if err != nil {
		return match.Result{}, fmt.Errorf("oracle: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(completion.TotalTokens)

	payload, err := ExtractObject(completion.Text)
	if err != nil {
		log.Warn("Oracle response has no structured payload",
			zap.Error(err),
			zap.Int("response_bytes", len(completion.Text)),
		)
		log.Debug("Oracle response excerpt", zap.String("excerpt", excerpt(completion.Text)))
		return match.Result{}, fmt.Errorf("extract payload: %w", err)
	}

	candidates, report, err := ParseCandidates(payload, req)
	if err != nil {
		log.Warn("Oracle payload rejected", zap.Error(err))
		log.Debug("Oracle payload excerpt", zap.String("excerpt", excerpt(payload)))
		return match.Result{}, fmt.Errorf("validate payload: %w", err)
	}
	for reason, n := range report.Dropped {
		metrics.ComparisonDroppedEntriesTotal.WithLabelValues(string(reason)).Add(float64(n))
	}

	kept := filterByThreshold(candidates, req.Threshold())

	log.Debug("Comparison completed",
		zap.Int("items1", len(req.Items1())),
		zap.Int("items2", len(req.Items2())),
		zap.Float64("threshold", req.Threshold()),
		zap.Int("oracle_entries", report.Entries),
		zap.Int("dropped_entries", report.DroppedTotal()),
		zap.Int("below_threshold", len(candidates)-len(kept)),
		zap.Int("matches", len(kept)),
		zap.Int("total_tokens", completion.TotalTokens),
	)

	return assemble(kept), nil
}

func excerpt(s string) string {
	if len(s) <= maxExcerpt {
		return s
	}
	return s[:maxExcerpt] + "..."
}
