package itemmatch

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/itemmatch/internal/domain"
)

// Oracle answers a natural-language instruction with free-form text.
// The client expects the text to contain a JSON object with a "matches" list.
// Implementations must be safe for concurrent use.
type Oracle interface {
	Complete(ctx context.Context, instruction string) (Completion, error)
}

// Completion carries the oracle answer and the tokens it cost.
type Completion struct {
	Text         string
	PromptTokens int
	TotalTokens  int
}

// oracleAdapter wraps public Oracle to satisfy internal domain.Oracle.
type oracleAdapter struct {
	inner Oracle
}

func (a *oracleAdapter) Complete(ctx context.Context, instruction string) (domain.Completion, error) {
	r, err := a.inner.Complete(ctx, instruction)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("custom oracle: %w", err)
	}
	return domain.Completion{
		Text:         r.Text,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
