package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/itemmatch/internal/domain"
)

// BudgetAction defines behavior when the token budget is exhausted.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but lets the comparison through.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject fails the comparison with ErrOracleQuotaExceeded.
	BudgetActionReject BudgetAction = "reject"
)

// Budget periods, also used as the "period" metric label.
const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"
)

// BudgetStore persists budget counters. IncrBy must be safe to repeat.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// BudgetWindow is a point-in-time view of one budget period.
type BudgetWindow struct {
	Period    string
	Limit     int64 // 0 = unlimited
	Used      int64
	Remaining int64 // -1 = unlimited
}

type window struct {
	period string
	layout string
	limit  int64
	used   int64
	start  time.Time
	trunc  func(time.Time) time.Time
}

func (w *window) roll(now time.Time) {
	if cur := w.trunc(now); cur.After(w.start) {
		w.used = 0
		w.start = cur
	}
}

func (w *window) exceeded() bool {
	return w.limit > 0 && w.used >= w.limit
}

func (w *window) snapshot() BudgetWindow {
	remaining := int64(-1)
	if w.limit > 0 {
		remaining = max(w.limit-w.used, 0)
	}
	return BudgetWindow{Period: w.period, Limit: w.limit, Used: w.used, Remaining: remaining}
}

// BudgetTracker counts oracle tokens per UTC day and month.
// Check is in-memory only; Record updates memory first, then writes behind to the store.
type BudgetTracker struct {
	mu       sync.Mutex
	windows  [2]window
	action   BudgetAction
	provider string
	store    BudgetStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewBudgetTracker creates a tracker. A zero limit disables that period.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	b := &BudgetTracker{
		action:   action,
		provider: provider,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	now := b.now()
	b.windows = [2]window{
		{period: PeriodDaily, layout: "2006-01-02", limit: dailyLimit, trunc: truncateToDay, start: truncateToDay(now)},
		{period: PeriodMonthly, layout: "2006-01", limit: monthlyLimit, trunc: truncateToMonth, start: truncateToMonth(now)},
	}
	return b
}

// WithStore attaches a persistence store and loads current counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now()
	for i := range b.windows {
		w := &b.windows[i]
		key := b.key(w, now)
		val, err := store.Get(ctx, key)
		if err != nil {
			b.logger.Warn("Failed to load budget from store",
				zap.String("period", w.period), zap.String("key", key), zap.Error(err))
			continue
		}
		w.used = val
	}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.windows[0].used),
		zap.Int64("monthly_used", b.windows[1].used),
	)
	return b
}

func (b *BudgetTracker) key(w *window, t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:%s:%s", domain.KeyPrefix, b.provider, w.period, t.Format(w.layout))
}

// Check reports whether a new oracle call is allowed.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	var hit *window
	for i := range b.windows {
		b.windows[i].roll(now)
		if hit == nil && b.windows[i].exceeded() {
			hit = &b.windows[i]
		}
	}
	if hit == nil {
		return nil
	}

	if b.action == BudgetActionReject {
		return fmt.Errorf("%s token budget of %d spent: %w", hit.period, hit.limit, domain.ErrOracleQuotaExceeded)
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.String("period", hit.period),
		zap.Int64("used", hit.used),
		zap.Int64("limit", hit.limit),
	)
	return nil
}

// Record adds consumed tokens.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	now := b.now()
	keys := make([]string, 0, len(b.windows))
	for i := range b.windows {
		w := &b.windows[i]
		w.roll(now)
		w.used += tokens
		keys = append(keys, b.key(w, now))
	}
	store := b.store
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Detached from the request so a canceled caller still gets its tokens counted.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, key := range keys {
		if err := store.IncrBy(ctx, key, tokens); err != nil {
			b.logger.Warn("Failed to persist budget", zap.String("key", key), zap.Error(err))
		}
	}
}

// Windows returns the current state of every budget period.
func (b *BudgetTracker) Windows() []BudgetWindow {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	out := make([]BudgetWindow, 0, len(b.windows))
	for i := range b.windows {
		b.windows[i].roll(now)
		out = append(out, b.windows[i].snapshot())
	}
	return out
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
