package domain

import "context"

// KeyPrefix namespaces every key itemmatch writes to the key-value store.
const KeyPrefix = "itemmatch:"

// Oracle is the text-in/text-out scoring contract shared between layers.
// Implementations must be safe for concurrent use.
type Oracle interface {
	Complete(ctx context.Context, instruction string) (Completion, error)
}

// HealthChecker verifies oracle provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Completion carries the oracle's free-form answer and token usage.
type Completion struct {
	Text         string
	PromptTokens int
	TotalTokens  int
}
