// Package mistral talks to OpenAI-compatible chat completion endpoints with
// function calling. Mistral is the default; OpenAI works through BaseURL.
package mistral

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

	"bizassist/internal/model"
)

const (
	DefaultBaseURL = "https://api.mistral.ai"
	DefaultModel   = "mistral-large-latest"

	OpenAIBaseURL = "https://api.openai.com"
	OpenAIModel   = "gpt-4o-mini"

	chatCompletionsPath = "/v1/chat/completions"
	maxErrorBodyBytes   = 2048
)

// Client implements model.ChatModel over HTTP.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client

	// Provider prefixes error codes, e.g. MISTRAL_AUTH.
	Provider string

	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewClient(baseURL, apiKey string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		APIKey:         apiKey,
		Model:          DefaultModel,
		HTTPClient:     &http.Client{Timeout: 60 * time.Second},
		Provider:       "mistral",
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

// NewOpenAIClient targets the OpenAI API with the same wire format.
func NewOpenAIClient(baseURL, apiKey string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = OpenAIBaseURL
	}
	c := NewClient(baseURL, apiKey)
	c.Model = OpenAIModel
	c.Provider = "openai"
	return c
}

type wireFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type wireToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function wireCallFunction `json:"function"`
}

type wireMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	ToolCalls  []wireToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Name       string          `json:"name,omitempty"`
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []wireMessage `json:"messages"`
	Tools      []wireTool    `json:"tools,omitempty"`
	ToolChoice string        `json:"tool_choice,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Chat sends one completion request. Tools are offered only when tools is
// non-empty.
func (c *Client) Chat(ctx context.Context, messages []model.ChatMessage, tools []model.ToolSpec) (model.ChatResponse, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return model.ChatResponse{}, c.providerError("AUTH", "api key is not set", false, 0, nil)
	}
	if len(messages) == 0 {
		return model.ChatResponse{}, c.providerError("FAILED", "messages are required", false, 0, nil)
	}

	payload, err := json.Marshal(c.buildRequest(messages, tools))
	if err != nil {
		return model.ChatResponse{}, c.providerError("FAILED", "encode request: "+err.Error(), false, 0, err)
	}

	var body []byte
	err = c.withRetry(ctx, func() error {
		var postErr error
		body, postErr = c.post(ctx, payload)
		return postErr
	})
	if err != nil {
		return model.ChatResponse{}, err
	}
	return c.parseResponse(body)
}

func (c *Client) buildRequest(messages []model.ChatMessage, tools []model.ToolSpec) chatRequest {
	req := chatRequest{Model: c.modelName(), Messages: make([]wireMessage, 0, len(messages))}
	for _, m := range messages {
		content, _ := json.Marshal(m.Content)
		wm := wireMessage{Role: m.Role, Content: content, ToolCallID: m.ToolCallID, Name: m.Name}
		for _, tc := range m.ToolCalls {
			args := strings.TrimSpace(tc.Arguments)
			if args == "" {
				args = "{}"
			}
			encoded, _ := json.Marshal(args)
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: wireCallFunction{Name: tc.Name, Arguments: encoded},
			})
		}
		req.Messages = append(req.Messages, wm)
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, wireTool{
			Type:     "function",
			Function: wireFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}
	return req
}

func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+chatCompletionsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, c.providerError("FAILED", "build request: "+err.Error(), false, 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.providerError("FAILED", "request cancelled", false, 0, ctx.Err())
		}
		return nil, c.providerError("UNAVAILABLE", "request failed: "+err.Error(), true, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.providerError("UNAVAILABLE", "read response: "+err.Error(), true, resp.StatusCode, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, c.statusError(resp.StatusCode, body)
}

func (c *Client) statusError(status int, body []byte) error {
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	msg := fmt.Sprintf("status %d: %s", status, strings.TrimSpace(string(body)))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return c.providerError("AUTH", msg, false, status, nil)
	case status == http.StatusTooManyRequests:
		return c.providerError("RATE_LIMIT", msg, true, status, nil)
	case status >= 500:
		return c.providerError("UNAVAILABLE", msg, true, status, nil)
	default:
		return c.providerError("FAILED", msg, false, status, nil)
	}
}

func (c *Client) parseResponse(body []byte) (model.ChatResponse, error) {
	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return model.ChatResponse{}, c.providerError("FAILED", "decode response: "+err.Error(), false, 0, err)
	}
	if len(decoded.Choices) == 0 {
		return model.ChatResponse{}, c.providerError("FAILED", "response has no choices", false, 0, nil)
	}
	choice := decoded.Choices[0]
	content, err := decodeContent(choice.Message.Content)
	if err != nil {
		return model.ChatResponse{}, c.providerError("FAILED", "decode content: "+err.Error(), false, 0, err)
	}
	out := model.ChatResponse{Content: content, FinishReason: choice.FinishReason}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, model.ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: decodeArguments(tc.Function.Arguments),
		})
	}
	return out, nil
}

// decodeContent accepts a plain string or an array of text parts, which are
// joined by newlines.
func decodeContent(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		err := json.Unmarshal(trimmed, &s)
		return s, err
	}
	var parts []contentPart
	if err := json.Unmarshal(trimmed, &parts); err != nil {
		return "", err
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Type == "" || p.Type == "text" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n"), nil
}

// decodeArguments returns the JSON argument blob. Some providers send it as
// an object rather than an encoded string.
func decodeArguments(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	backoff := c.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxBackoff := c.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = backoff
	}
	attempts := c.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var pe *model.ProviderError
		if !errors.As(err, &pe) || !pe.Retryable || attempt == attempts-1 {
			return err
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return c.providerError("FAILED", "request cancelled", false, 0, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return err
}

func (c *Client) providerError(suffix, msg string, retryable bool, status int, cause error) *model.ProviderError {
	prefix := strings.ToUpper(strings.TrimSpace(c.Provider))
	if prefix == "" {
		prefix = "MISTRAL"
	}
	return &model.ProviderError{
		Code:       prefix + "_" + suffix,
		Message:    msg,
		Retryable:  retryable,
		StatusCode: status,
		Cause:      cause,
	}
}

func (c *Client) modelName() string {
	if strings.TrimSpace(c.Model) == "" {
		return DefaultModel
	}
	return c.Model
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}
