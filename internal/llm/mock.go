package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockResponse is a canned response for the MockProvider.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// MockProvider is a deterministic Provider for testing.
// It returns canned responses in FIFO order and records all requests.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	repeat    json.RawMessage
	byName    map[string]json.RawMessage
	Calls     []Request
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// Generate returns the next canned response. When the queue is empty it
// returns the repeat response if one was set, otherwise
// ErrProviderUnavailable.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	// Schema-keyed responses take priority: they keep concurrent callers
	// deterministic regardless of arrival order.
	if req.Schema != nil {
		if content, ok := m.byName[req.Schema.Name]; ok {
			return &Response{Content: content, Model: "mock", StopReason: "end"}, nil
		}
	}

	if len(m.responses) == 0 {
		if m.repeat != nil {
			return &Response{Content: m.repeat, Model: "mock", StopReason: "end"}, nil
		}
		return nil, &ErrProviderUnavailable{Err: nil}
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]

	if resp.Err != nil {
		return nil, resp.Err
	}

	return &Response{
		Content:    resp.Content,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

// ModelID returns "mock".
func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// RespondTo registers a canned response for every request whose schema
// name matches. Takes priority over the FIFO queue.
func (m *MockProvider) RespondTo(schemaName string, content json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byName == nil {
		m.byName = make(map[string]json.RawMessage)
	}
	m.byName[schemaName] = content
}

// SetRepeat sets the content returned for every call once the queue is
// drained. Useful for compile tests that only care about one stage.
func (m *MockProvider) SetRepeat(content json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeat = content
}

// CallCount returns the number of Generate calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or a zero Request if none.
func (m *MockProvider) LastCall() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return Request{}
	}
	return m.Calls[len(m.Calls)-1]
}
