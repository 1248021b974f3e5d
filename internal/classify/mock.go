package classify

import (
	"context"
	"sync"
)

// MockClassifier is a deterministic classifier for tests and local
// development. By default everything classifies as waste with high
// confidence; tests override Result/Err per call.
type MockClassifier struct {
	mu sync.Mutex

	Result Result
	Err    error

	// Calls records the images passed to Classify.
	Calls []string
}

// NewMockClassifier returns a mock that accepts everything as waste.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{
		Result: Result{Label: "Waste", Confidence: 0.97, ModelVersion: "mock"},
	}
}

// Classify returns the configured result or error.
func (m *MockClassifier) Classify(ctx context.Context, imageBase64 string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, imageBase64)
	if m.Err != nil {
		return Result{}, m.Err
	}
	return m.Result, nil
}

// Health reports healthy unless the mock is configured to fail.
func (m *MockClassifier) Health(ctx context.Context) (HealthStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return HealthStatus{Reachable: false, Message: m.Err.Error()}, m.Err
	}
	return HealthStatus{Reachable: true, ModelVersion: m.Result.ModelVersion}, nil
}
