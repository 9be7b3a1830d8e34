package llm

import "context"

// MockClient is a canned Client for tests and previews.
type MockClient struct {
	// Response is returned verbatim when Err is nil.
	Response string
	// Err, when set, fails every call.
	Err error
	// Requests records every request received.
	Requests []CompletionRequest
}

// Complete implements Client.
func (m *MockClient) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return &CompletionResponse{
		Content:      m.Response,
		Model:        req.Model,
		FinishReason: "stop",
	}, nil
}
