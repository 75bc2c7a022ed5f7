// Package gemini adapts the Google GenAI SDK to model.ChatModel.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"bizassist/internal/model"
)

const DefaultModel = "gemini-2.5-flash"

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client sends chat turns to Gemini with function declarations.
type Client struct {
	models generator
	model  string
}

// Options configures New. BaseURL is only needed for proxies and tests.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, &model.ProviderError{Code: "GEMINI_AUTH", Message: "api key is not set"}
	}
	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newWithGenerator(client.Models, opts.Model), nil
}

func newWithGenerator(g generator, modelName string) *Client {
	if strings.TrimSpace(modelName) == "" {
		modelName = DefaultModel
	}
	return &Client{models: g, model: modelName}
}

func (c *Client) Chat(ctx context.Context, messages []model.ChatMessage, tools []model.ToolSpec) (model.ChatResponse, error) {
	system, contents := toContents(messages)
	if len(contents) == 0 {
		return model.ChatResponse{}, &model.ProviderError{Code: "GEMINI_FAILED", Message: "messages are required"}
	}
	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if decls := toDeclarations(tools); len(decls) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return model.ChatResponse{}, providerError(err)
	}
	return fromResponse(resp)
}

// toContents splits system messages into one instruction and maps the rest
// onto user/model turns. Consecutive tool results share one user turn.
func toContents(messages []model.ChatMessage) (*genai.Content, []*genai.Content) {
	var systemParts []*genai.Part
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case model.MessageSystem:
			systemParts = append(systemParts, &genai.Part{Text: m.Content})
		case model.MessageAssistant:
			turn := &genai.Content{Role: string(genai.RoleModel)}
			if strings.TrimSpace(m.Content) != "" {
				turn.Parts = append(turn.Parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				turn.Parts = append(turn.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Name,
					Args: decodeObject(tc.Arguments, "arguments"),
				}})
			}
			if len(turn.Parts) > 0 {
				contents = append(contents, turn)
			}
		case model.MessageTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     m.Name,
				Response: decodeObject(m.Content, "output"),
			}}
			if n := len(contents); n > 0 && isFunctionResponseTurn(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{part}})
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	var system *genai.Content
	if len(systemParts) > 0 {
		system = &genai.Content{Parts: systemParts}
	}
	return system, contents
}

func isFunctionResponseTurn(c *genai.Content) bool {
	return c.Role == string(genai.RoleUser) && len(c.Parts) > 0 && c.Parts[0].FunctionResponse != nil
}

// decodeObject parses raw as a JSON object, wrapping anything else under key.
func decodeObject(raw, key string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj != nil {
		return obj
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return map[string]any{key: v}
	}
	return map[string]any{key: raw}
}

func toDeclarations(tools []model.ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		})
	}
	return decls
}

func fromResponse(resp *genai.GenerateContentResponse) (model.ChatResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return model.ChatResponse{}, &model.ProviderError{Code: "GEMINI_FAILED", Message: "response has no candidates"}
	}
	cand := resp.Candidates[0]
	out := model.ChatResponse{FinishReason: string(cand.FinishReason)}
	if cand.Content == nil {
		return out, nil
	}
	var texts []string
	for _, p := range cand.Content.Parts {
		if p == nil {
			continue
		}
		if p.FunctionCall != nil {
			args, err := json.Marshal(p.FunctionCall.Args)
			if err != nil {
				return model.ChatResponse{}, &model.ProviderError{Code: "GEMINI_FAILED", Message: "encode function call args: " + err.Error(), Cause: err}
			}
			if p.FunctionCall.Args == nil {
				args = []byte("{}")
			}
			out.ToolCalls = append(out.ToolCalls, model.ToolCallRequest{
				ID:        p.FunctionCall.ID,
				Name:      p.FunctionCall.Name,
				Arguments: string(args),
			})
			continue
		}
		if p.Text != "" && !p.Thought {
			texts = append(texts, p.Text)
		}
	}
	out.Content = strings.Join(texts, "")
	return out, nil
}

func providerError(err error) error {
	pe := &model.ProviderError{Code: "GEMINI_FAILED", Message: err.Error(), Cause: err}
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	status := 0
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		status = apiErrPtr.Code
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return pe
	default:
		pe.Code = "GEMINI_UNAVAILABLE"
		pe.Retryable = true
		return pe
	}
	pe.StatusCode = status
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		pe.Code = "GEMINI_AUTH"
	case status == http.StatusTooManyRequests:
		pe.Code = "GEMINI_RATE_LIMIT"
		pe.Retryable = true
	case status >= 500:
		pe.Code = "GEMINI_UNAVAILABLE"
		pe.Retryable = true
	}
	return pe
}
