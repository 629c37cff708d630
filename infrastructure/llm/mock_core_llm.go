package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// errSimulated is returned by MockCoreLLM when it is told to fail but has
// no Error configured.
var errSimulated = errors.New("simulated failure")

// MockCoreLLM is a configurable CoreLLM for tests of the middleware chain
// and of code built on Client.
type MockCoreLLM struct {
	mu sync.Mutex

	// Response is returned when Respond is nil.
	Response  string
	TokensIn  int
	TokensOut int
	// Respond computes the response from the prompt when set.
	Respond func(prompt string, opts map[string]any) string
	// Error is returned for every failing call.
	Error error
	Model string
	// ResponseDelay is waited before answering, unless ctx ends first.
	ResponseDelay time.Duration
	// FailUntilAttempt makes the first N calls fail.
	FailUntilAttempt int

	CallCount      int
	LastPrompt     string
	LastOpts       map[string]any
	CallTimestamps []time.Time
}

// NewMockCoreLLM creates a mock that always succeeds.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// DoRequest implements CoreLLM.
func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastPrompt = prompt
	m.LastOpts = opts
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay := m.ResponseDelay
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	failing := m.FailUntilAttempt > 0 && call <= m.FailUntilAttempt
	if failing || (m.FailUntilAttempt == 0 && m.Error != nil) {
		if m.Error != nil {
			return "", 0, 0, m.Error
		}
		return "", 0, 0, errSimulated
	}

	if m.Respond != nil {
		return m.Respond(prompt, opts), m.TokensIn, m.TokensOut, nil
	}
	return m.Response, m.TokensIn, m.TokensOut, nil
}

// GetModel implements CoreLLM.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// Calls returns the number of times DoRequest was called.
func (m *MockCoreLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// Prompt returns the prompt of the last call.
func (m *MockCoreLLM) Prompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastPrompt
}

// Options returns the options of the last call.
func (m *MockCoreLLM) Options() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastOpts
}
