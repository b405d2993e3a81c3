package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/itemmatch/internal/domain/usage"
	oracleuc "github.com/kailas-cloud/itemmatch/internal/usecase/oracle"
)

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (no budget configured): reports are then
// unlimited with zero usage, since nothing counts tokens.
func New(br BudgetReader) *Service {
	return &Service{br: br, now: func() time.Time { return time.Now().UTC() }}
}

// GetReport builds a usage report for the current UTC day or month.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now()
	var start, end time.Time
	var window string

	switch period {
	case domusage.PeriodMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
		window = oracleuc.PeriodMonthly
	default:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 0, 1)
		window = oracleuc.PeriodDaily
		period = domusage.PeriodDay
	}

	var used, limit int64
	if s.br != nil {
		for _, w := range s.br.Windows() {
			if w.Period == window {
				used, limit = w.Used, w.Limit
				break
			}
		}
	}

	return domusage.NewReport(period, start, end, used, limit)
}
