package ai

import (
	"context"
	"sync"
)

// MockCompletionService is an in-memory CompletionService for tests.
type MockCompletionService struct {
	mu sync.Mutex

	// Reply is returned from Complete when Err is nil.
	Reply string
	// Err forces Complete to fail.
	Err error
	// NotReady makes Ready report false.
	NotReady bool

	// Calls records the conversations passed to Complete.
	Calls [][]Message
}

// NewMockCompletionService creates a mock that echoes a canned reply.
func NewMockCompletionService(reply string) *MockCompletionService {
	return &MockCompletionService{Reply: reply}
}

func (m *MockCompletionService) Complete(_ context.Context, messages []Message) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, messages)
	if m.Err != nil {
		return nil, m.Err
	}
	return &Result{Response: m.Reply, TokensUsed: len(m.Reply), Model: "mock"}, nil
}

func (m *MockCompletionService) Ready() bool {
	return !m.NotReady
}

var _ CompletionService = (*MockCompletionService)(nil)
