package domain

import "context"

type oracleUsageKey struct{}

// OracleUsage collects token usage for a single HTTP request.
// The handler puts a mutable pointer into the context before calling the service;
// the service writes after the oracle call; the handler reads it for response headers.
type OracleUsage struct {
	TotalTokens int
	Used        bool // true once the oracle was called, even if it reported 0 tokens
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *OracleUsage) {
	u := &OracleUsage{}
	return context.WithValue(ctx, oracleUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *OracleUsage {
	u, _ := ctx.Value(oracleUsageKey{}).(*OracleUsage)
	return u
}

// AddTokens records consumed tokens.
func (u *OracleUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Used = true
	}
}
