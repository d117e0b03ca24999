package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/forgeloop/forgeloop/internal/application/port/output"
)

// ClaudeAPIGateway implements AgentGateway against the Anthropic messages
// API. Unlike the CLI variant it cannot edit files itself; it is intended
// for projects where the harness applies changes from the response.
type ClaudeAPIGateway struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
	model      string
}

// NewClaudeAPIGateway creates a new API gateway
func NewClaudeAPIGateway(apiKey, model string, timeout time.Duration) *ClaudeAPIGateway {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &ClaudeAPIGateway{
		apiKey: apiKey,
		apiURL: "https://api.anthropic.com/v1/messages",
		httpClient: &http.Client{
			Timeout: timeout,
		},
		model: model,
	}
}

// Execute runs the agent with the given request
func (g *ClaudeAPIGateway) Execute(ctx context.Context, req output.AgentRequest) (*output.AgentResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.model
	}

	apiReq := messagesRequest{
		Model:     model,
		MaxTokens: 8192,
		Messages: []message{
			{Role: "user", Content: req.Prompt},
		},
	}

	resp, err := g.callAPI(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("claude API call failed: %w", err)
	}

	var outputText string
	if len(resp.Content) > 0 {
		outputText = resp.Content[0].Text
	}

	return &output.AgentResponse{
		Output:       outputText,
		Duration:     time.Since(start),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Model:        resp.Model,
	}, nil
}

// Name returns the gateway variant identifier
func (g *ClaudeAPIGateway) Name() string {
	return "claude-api"
}

// HealthCheck verifies the API is reachable with the configured key
func (g *ClaudeAPIGateway) HealthCheck(ctx context.Context) error {
	if g.apiKey == "" {
		return fmt.Errorf("API key is not configured")
	}
	req := messagesRequest{
		Model:     g.model,
		MaxTokens: 10,
		Messages:  []message{{Role: "user", Content: "ping"}},
	}
	_, err := g.callAPI(ctx, req)
	return err
}

// callAPI makes an HTTP request to the messages endpoint
func (g *ClaudeAPIGateway) callAPI(ctx context.Context, req messagesRequest) (*messagesResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", g.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer httpResp.Body.Close()

	var apiResp messagesResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		if apiResp.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s - %s", httpResp.StatusCode, apiResp.Error.Type, apiResp.Error.Message)
		}
		return nil, fmt.Errorf("API error: status %d", httpResp.StatusCode)
	}

	return &apiResp, nil
}

// Anthropic messages API request/response types
type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      apiUsage       `json:"usage"`
	Error      apiError       `json:"error,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
