package provider

import "context"

// MockAdapter is a test double. It records the arguments of the last
// Generate call and returns a fixed reply or error.
type MockAdapter struct {
	Reply       string
	Model       string
	Err         error
	LastMessage string
	LastHistory []Turn
	Calls       int
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{Reply: "mock reply", Model: "mock"}
}

func (m *MockAdapter) Generate(ctx context.Context, message string, history []Turn) (*Result, error) {
	m.Calls++
	m.LastMessage = message
	m.LastHistory = history
	if m.Err != nil {
		return nil, m.Err
	}
	return &Result{Message: m.Reply, Model: m.Model}, nil
}
