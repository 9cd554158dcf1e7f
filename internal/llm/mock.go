package llm

import (
	"context"
	"sync"
)

// MockClient is a scriptable Client for tests. Replies are consumed in order;
// once exhausted the last reply repeats. CompleteFunc, when set, wins.
type MockClient struct {
	CompleteFunc func(ctx context.Context, req Request) (string, error)
	Replies      []string
	ModelName    string

	mu    sync.Mutex
	calls []Request
}

// NewMockClient returns a mock that answers with replies in order.
func NewMockClient(replies ...string) *MockClient {
	return &MockClient{Replies: replies, ModelName: "mock"}
}

func (m *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	idx := len(m.calls)
	m.calls = append(m.calls, req)
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if len(m.Replies) == 0 {
		return "", nil
	}
	if idx >= len(m.Replies) {
		idx = len(m.Replies) - 1
	}
	return m.Replies[idx], nil
}

func (m *MockClient) Model() string {
	if m.ModelName == "" {
		return "mock"
	}
	return m.ModelName
}

// Calls returns a copy of every request seen so far.
func (m *MockClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}
