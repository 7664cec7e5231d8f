package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tenderwise/pkg/utils"
)

// Default configuration values.
const (
	DefaultBaseURL       = "https://api.openai.com/v1"
	DefaultModel         = "gpt-4o-mini"
	DefaultTimeout       = 120 * time.Second
	DefaultMaxToolRounds = 4
)

// OpenAIConfig holds configuration for the OpenAI chat agent.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	// MaxToolRounds bounds the tool-call/answer loop.
	MaxToolRounds int
}

// OpenAIAgent answers through an OpenAI-compatible /chat/completions endpoint, exposing
// lookup_clause and search_tender as function tools. The first round requires a tool call.
type OpenAIAgent struct {
	client        *http.Client
	baseURL       string
	apiKey        string
	model         string
	maxTokens     int
	temperature   float64
	maxToolRounds int
	tools         *Toolbox
	logger        *zap.Logger
}

// OpenAIOption configures an OpenAIAgent.
type OpenAIOption func(*OpenAIAgent)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) OpenAIOption {
	return func(a *OpenAIAgent) { a.logger = utils.OrNop(l) }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(a *OpenAIAgent) { a.client = c }
}

// NewOpenAIAgent creates a chat agent.
func NewOpenAIAgent(cfg OpenAIConfig, tools *Toolbox, opts ...OpenAIOption) (*OpenAIAgent, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai agent: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	a := &OpenAIAgent{
		client:        &http.Client{Timeout: cfg.Timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		maxToolRounds: cfg.MaxToolRounds,
		tools:         tools,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function functionDef `json:"function"`
}

type functionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []toolDef     `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func stringParam(name, description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			name: map[string]any{"type": "string", "description": description},
		},
		"required": []string{name},
	}
}

var toolDefinitions = []toolDef{
	{Type: "function", Function: functionDef{
		Name:        ToolLookupClause,
		Description: lookupClauseDescription,
		Parameters:  stringParam("clause_number", "The specific clause number to look up (e.g., '5.1', '10.2.3')."),
	}},
	{Type: "function", Function: functionDef{
		Name:        ToolSearchTender,
		Description: searchTenderDescription,
		Parameters:  stringParam("query", "The semantic search query."),
	}},
}

// Answer implements Agent.
func (a *OpenAIAgent) Answer(ctx context.Context, req Request) (string, error) {
	messages := []chatMessage{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: req.Query},
	}
	for round := 0; round < a.maxToolRounds; round++ {
		choice := "auto"
		if round == 0 {
			choice = "required"
		}
		msg, err := a.complete(ctx, messages, choice)
		if err != nil {
			return "", err
		}
		if len(msg.ToolCalls) == 0 {
			return strings.TrimSpace(msg.Content), nil
		}
		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			out, err := a.runTool(ctx, req, call)
			if err != nil {
				return "", fmt.Errorf("tool %s: %w", call.Function.Name, err)
			}
			a.logger.Debug("agent tool call",
				zap.String("tool", call.Function.Name), zap.String("tender_id", req.TenderID), zap.Int("output_bytes", len(out)))
			messages = append(messages, chatMessage{Role: "tool", ToolCallID: call.ID, Content: out})
		}
	}
	return "", fmt.Errorf("openai agent: no answer after %d tool rounds", a.maxToolRounds)
}

func (a *OpenAIAgent) runTool(ctx context.Context, req Request, call toolCall) (string, error) {
	var args struct {
		ClauseNumber string `json:"clause_number"`
		Query        string `json:"query"`
	}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return "", fmt.Errorf("decode arguments: %w", err)
		}
	}
	switch call.Function.Name {
	case ToolLookupClause:
		return a.tools.LookupClause(ctx, req.TenderID, strings.TrimSpace(args.ClauseNumber))
	case ToolSearchTender:
		q := strings.TrimSpace(args.Query)
		if q == "" {
			q = req.Query
		}
		return a.tools.SearchTender(ctx, req.TenderID, q, req.Strategy)
	default:
		return "", fmt.Errorf("unknown tool %q", call.Function.Name)
	}
}

func (a *OpenAIAgent) complete(ctx context.Context, messages []chatMessage, toolChoice string) (chatMessage, error) {
	reqBody := chatCompletionRequest{
		Model:      a.model,
		Messages:   messages,
		Tools:      toolDefinitions,
		ToolChoice: toolChoice,
	}
	if a.maxTokens > 0 {
		reqBody.MaxTokens = a.maxTokens
	}
	if a.temperature > 0 {
		reqBody.Temperature = a.temperature
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return chatMessage{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return chatMessage{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return chatMessage{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return chatMessage{}, fmt.Errorf("read response: %w", err)
	}
	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return chatMessage{}, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return chatMessage{}, fmt.Errorf("decode response: %w", err)
	}
	if chatResp.Error != nil {
		return chatMessage{}, fmt.Errorf("openai error: %s", chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return chatMessage{}, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(chatResp.Choices) == 0 {
		return chatMessage{}, errors.New("openai: no response choices returned")
	}
	return chatResp.Choices[0].Message, nil
}
