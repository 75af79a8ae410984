package pipeline

import (
	"context"
	"sync"
)

// MockEngine is a mock implementation of Engine for testing.
type MockEngine struct {
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (m *MockEngine) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return `{"description": null, "price": null, "category": null}`, nil
}

func (m *MockEngine) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *MockEngine) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

func replying(raw string) *MockEngine {
	return &MockEngine{
		GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
			return raw, nil
		},
	}
}
