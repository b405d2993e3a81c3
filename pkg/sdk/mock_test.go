package itemmatch

import (
	"context"
	"sync"
)

// --- Oracle mock ---

type mockOracle struct {
	mu           sync.Mutex
	text         string
	tokens       int
	err          error
	calls        int
	instructions []string
}

func (m *mockOracle) Complete(_ context.Context, instruction string) (Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.instructions = append(m.instructions, instruction)
	if m.err != nil {
		return Completion{}, m.err
	}
	return Completion{Text: m.text, PromptTokens: m.tokens / 2, TotalTokens: m.tokens}, nil
}

func (m *mockOracle) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// checkedOracle additionally exposes a health check.
type checkedOracle struct {
	mockOracle
	healthErr error
}

func (c *checkedOracle) HealthCheck(context.Context) error { return c.healthErr }
