package handlers

import (
	"context"
	"database/sql"
	"sync"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/jobs"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/pipeline"
)

// testHandle is an auth.Handle over a sqlmock connection.
type testHandle struct {
	*sql.DB
	commits   int
	CommitErr error
}

func (h *testHandle) Commit(ctx context.Context) error {
	h.commits++
	return h.CommitErr
}

// MockExtractor is a hand-written Extractor.
type MockExtractor struct {
	RunFunc func(ctx context.Context, text string) (*pipeline.PipelineState, error)
	texts   []string
}

func (m *MockExtractor) Run(ctx context.Context, text string) (*pipeline.PipelineState, error) {
	m.texts = append(m.texts, text)
	return m.RunFunc(ctx, text)
}

func extracting(result pipeline.Result) *MockExtractor {
	return &MockExtractor{
		RunFunc: func(ctx context.Context, text string) (*pipeline.PipelineState, error) {
			return &pipeline.PipelineState{
				Text:      text,
				Prompt:    "prompt:" + text,
				RawOutput: `{"raw":true}`,
				Result:    result,
			}, nil
		},
	}
}

// MockPublisher collects published jobs.
type MockPublisher struct {
	mu         sync.Mutex
	Published  []*jobs.Job
	PublishErr error
}

func (m *MockPublisher) Publish(ctx context.Context, job *jobs.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, job)
	return m.PublishErr
}

func (m *MockPublisher) Close() error { return nil }

func (m *MockPublisher) types() []jobs.JobType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]jobs.JobType, len(m.Published))
	for i, j := range m.Published {
		out[i] = j.Type
	}
	return out
}
