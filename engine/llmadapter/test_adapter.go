package llmadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// TestAdapter is a scriptable LLMClient for unit tests elsewhere in the
// engine (the LLM Gateway, the Step Engine, the Context Manager).
type TestAdapter struct {
	mu sync.RWMutex

	Response *LLMResponse
	Error    error

	Calls []LLMRequest
}

func NewTestAdapter() *TestAdapter {
	return &TestAdapter{Calls: make([]LLMRequest, 0)}
}

func (t *TestAdapter) GenerateContent(_ context.Context, req *LLMRequest) (*LLMResponse, error) {
	t.mu.Lock()
	t.Calls = append(t.Calls, *req)
	response := t.Response
	err := t.Error
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if response != nil {
		return response, nil
	}
	return &LLMResponse{Content: "test response"}, nil
}

func (t *TestAdapter) SetResponse(content string, toolCalls ...ToolCall) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Response = &LLMResponse{Content: content, ToolCalls: toolCalls}
}

func (t *TestAdapter) SetError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Error = err
}

func (t *TestAdapter) GetLastCall() *LLMRequest {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.Calls) == 0 {
		return nil
	}
	return &t.Calls[len(t.Calls)-1]
}

func (t *TestAdapter) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = make([]LLMRequest, 0)
	t.Response = nil
	t.Error = nil
}

// MockToolAdapter answers the first request carrying a tool it has a
// configured result for with a tool call, then falls back to TestAdapter's
// scripted response on the next turn — enough to drive a Gateway tool hop
// in a test without a real provider.
type MockToolAdapter struct {
	*TestAdapter
	toolMu      sync.RWMutex
	ToolResults map[string]string
}

func NewMockToolAdapter() *MockToolAdapter {
	return &MockToolAdapter{TestAdapter: NewTestAdapter(), ToolResults: make(map[string]string)}
}

func (m *MockToolAdapter) GenerateContent(_ context.Context, req *LLMRequest) (*LLMResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, *req)
	err := m.Error
	response := m.Response
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	m.toolMu.RLock()
	results := make(map[string]string, len(m.ToolResults))
	for k, v := range m.ToolResults {
		results[k] = v
	}
	m.toolMu.RUnlock()
	answered := false
	for _, msg := range req.Messages {
		if msg.Role == "tool" {
			answered = true
			break
		}
	}
	if !answered && len(req.Tools) > 0 && len(results) > 0 {
		for _, tool := range req.Tools {
			if _, ok := results[tool.Name]; ok {
				argsJSON, marshalErr := json.Marshal(map[string]any{"input": "test"})
				if marshalErr != nil {
					return nil, fmt.Errorf("llmadapter: marshal args: %w", marshalErr)
				}
				return &LLMResponse{
					ToolCalls: []ToolCall{{ID: fmt.Sprintf("call_%s", tool.Name), Name: tool.Name, Arguments: argsJSON}},
				}, nil
			}
		}
	}
	if response != nil {
		return response, nil
	}
	return &LLMResponse{Content: "mock response"}, nil
}

func (m *MockToolAdapter) SetToolResult(toolName, result string) {
	m.toolMu.Lock()
	defer m.toolMu.Unlock()
	m.ToolResults[toolName] = result
}
