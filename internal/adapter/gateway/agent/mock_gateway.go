package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/forgeloop/forgeloop/internal/application/port/output"
)

// MockGateway is a scripted AgentGateway for tests. Responses are consumed
// in order; when the script runs out the configured error (or the last
// response) is repeated.
type MockGateway struct {
	mu        sync.Mutex
	responses []MockResponse
	calls     []output.AgentRequest
}

// MockResponse is one scripted Execute outcome
type MockResponse struct {
	Response *output.AgentResponse
	Err      error
}

// NewMockGateway creates a gateway that replays the given script
func NewMockGateway(responses ...MockResponse) *MockGateway {
	return &MockGateway{responses: responses}
}

// Execute returns the next scripted response
func (g *MockGateway) Execute(ctx context.Context, req output.AgentRequest) (*output.AgentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, req)
	if len(g.responses) == 0 {
		return nil, fmt.Errorf("mock gateway: no scripted responses")
	}

	next := g.responses[0]
	if len(g.responses) > 1 {
		g.responses = g.responses[1:]
	}
	return next.Response, next.Err
}

// Name returns the gateway variant identifier
func (g *MockGateway) Name() string {
	return "mock"
}

// HealthCheck always succeeds
func (g *MockGateway) HealthCheck(ctx context.Context) error {
	return nil
}

// Calls returns the requests observed so far
func (g *MockGateway) Calls() []output.AgentRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]output.AgentRequest(nil), g.calls...)
}
