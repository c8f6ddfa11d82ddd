package ai

import (
	"context"
	"sync"
)

// MockProvider is a test double for AI providers. Responses can be scripted
// per stage; Response and Err apply to stages without a script.
type MockProvider struct {
	Response string
	Err      error

	// ByStage returns successive responses for a stage; the last one repeats.
	ByStage map[Stage][]string
	// ErrByStage fails every call for a stage.
	ErrByStage map[Stage]error

	mu       sync.Mutex
	requests []CompletionRequest
	calls    map[Stage]int
}

// NewMockProvider creates a MockProvider that returns the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.calls == nil {
		m.calls = make(map[Stage]int)
	}
	n := m.calls[req.Stage]
	m.calls[req.Stage] = n + 1

	if err := m.ErrByStage[req.Stage]; err != nil {
		return CompletionResponse{}, err
	}
	content := m.Response
	if script := m.ByStage[req.Stage]; len(script) > 0 {
		content = script[min(n, len(script)-1)]
	} else if m.Err != nil {
		return CompletionResponse{}, m.Err
	}
	return CompletionResponse{
		Content:      content,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(content),
	}, nil
}

// Requests returns every request received so far.
func (m *MockProvider) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.requests...)
}

// LastRequest returns the most recent request, or nil.
func (m *MockProvider) LastRequest() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	req := m.requests[len(m.requests)-1]
	return &req
}

// Calls returns how many requests a stage received.
func (m *MockProvider) Calls(stage Stage) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[stage]
}

func (m *MockProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "mock", Name: "Mock Model", MaxTokens: 4096, Description: "Test mock"},
	}
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}
