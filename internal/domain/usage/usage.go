// Package usage describes oracle token consumption against the configured budget.
package usage

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/itemmatch/internal/domain"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name. Empty selects PeriodDay.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("%w: period must be %q or %q", domain.ErrInvalidInput, PeriodDay, PeriodMonth)
	}
}

// Report is the oracle token usage for one budget period (UTC).
type Report struct {
	period    Period
	start     time.Time
	end       time.Time
	used      int64
	limit     int64
	remaining int64
}

// NewReport creates a usage report. limit 0 means unlimited.
func NewReport(period Period, start, end time.Time, used, limit int64) Report {
	remaining := int64(-1)
	if limit > 0 {
		remaining = max(limit-used, 0)
	}
	return Report{
		period:    period,
		start:     start,
		end:       end,
		used:      used,
		limit:     limit,
		remaining: remaining,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the inclusive period start.
func (r *Report) PeriodStart() time.Time { return r.start }

// PeriodEnd returns the exclusive period end, which is also when the budget resets.
func (r *Report) PeriodEnd() time.Time { return r.end }

// TokensUsed returns tokens consumed in the period.
func (r *Report) TokensUsed() int64 { return r.used }

// TokensLimit returns the period limit, 0 if unlimited.
func (r *Report) TokensLimit() int64 { return r.limit }

// TokensRemaining returns the tokens left, -1 if unlimited.
func (r *Report) TokensRemaining() int64 { return r.remaining }

// Exhausted reports whether the limit has been reached.
func (r *Report) Exhausted() bool { return r.limit > 0 && r.remaining == 0 }
