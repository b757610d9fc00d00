package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// MockProvider is a scripted Provider for tests and offline development.
// It returns queued responses in order and records every Chat call.
type MockProvider struct {
	mu        sync.Mutex
	responses []*Response
	calls     []ChatCall

	// ChatFunc, when set, overrides the queued responses entirely.
	ChatFunc func(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error)
}

// ChatCall records the arguments of a single Chat invocation.
type ChatCall struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
}

// NewMockProvider creates a mock provider with the given scripted responses.
func NewMockProvider(responses ...*Response) *MockProvider {
	return &MockProvider{responses: responses}
}

// Enqueue appends a scripted response.
func (p *MockProvider) Enqueue(resp *Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, resp)
}

// EnqueueText appends a scripted plain-text response.
func (p *MockProvider) EnqueueText(content string) {
	p.Enqueue(&Response{
		Content:    content,
		StopReason: StopReasonEndTurn,
	})
}

// Chat implements Provider.Chat by returning the next queued response.
func (p *MockProvider) Chat(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.calls = append(p.calls, ChatCall{
		SystemPrompt: systemPrompt,
		Messages:     messages,
		Tools:        tools,
	})
	override := p.ChatFunc
	p.mu.Unlock()

	if override != nil {
		return override(ctx, systemPrompt, messages, tools)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.responses) == 0 {
		return nil, fmt.Errorf("mock provider: no scripted response for call %d", len(p.calls))
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

// Calls returns a copy of all recorded Chat calls.
func (p *MockProvider) Calls() []ChatCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	calls := make([]ChatCall, len(p.calls))
	copy(calls, p.calls)
	return calls
}

// Name implements Provider.Name.
func (p *MockProvider) Name() string {
	return "mock"
}

// Model implements Provider.Model.
func (p *MockProvider) Model() string {
	return "mock"
}

// scenarioFile is the YAML structure for scripted mock scenarios.
type scenarioFile struct {
	Responses []scenarioResponse `yaml:"responses"`
}

type scenarioResponse struct {
	Content    string             `yaml:"content"`
	StopReason string             `yaml:"stop_reason"`
	ToolCalls  []scenarioToolCall `yaml:"tool_calls"`
}

type scenarioToolCall struct {
	ID    string                 `yaml:"id"`
	Name  string                 `yaml:"name"`
	Input map[string]interface{} `yaml:"input"`
}

// LoadMockScenario creates a MockProvider from a YAML scenario file. This
// backs the "mock" model option so the full pipeline can run without API
// access.
//
// Example scenario:
//
//	responses:
//	  - content: '{"has_issues": true, "issues": [...]}'
//	  - content: '{"root_cause": "...", "confidence": "high"}'
func LoadMockScenario(path string) (*MockProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mock scenario %q: %w", path, err)
	}

	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse mock scenario %q: %w", path, err)
	}

	responses := make([]*Response, 0, len(file.Responses))
	for i, sr := range file.Responses {
		resp := &Response{
			Content:    sr.Content,
			StopReason: StopReason(sr.StopReason),
		}
		if resp.StopReason == "" {
			resp.StopReason = StopReasonEndTurn
		}

		for _, tc := range sr.ToolCalls {
			input, err := json.Marshal(tc.Input)
			if err != nil {
				return nil, fmt.Errorf("mock scenario response %d: invalid tool input: %w", i, err)
			}
			id := tc.ID
			if id == "" {
				id = fmt.Sprintf("toolu_mock_%d", len(resp.ToolCalls))
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolUseBlock{
				ID:    id,
				Name:  tc.Name,
				Input: input,
			})
			resp.StopReason = StopReasonToolUse
		}

		responses = append(responses, resp)
	}

	return NewMockProvider(responses...), nil
}
