package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"bizassist/internal/model"
)

type fakeGenerator struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, modelName string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = modelName
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content:      &genai.Content{Role: string(genai.RoleModel), Parts: parts},
		FinishReason: genai.FinishReasonStop,
	}}}
}

func TestChat_MapsConversation(t *testing.T) {
	fake := &fakeGenerator{resp: textResponse(&genai.Part{Text: "Done."})}
	c := newWithGenerator(fake, "")

	msgs := []model.ChatMessage{
		{Role: model.MessageSystem, Content: "be brief"},
		{Role: model.MessageSystem, Content: "Default currency: GBP."},
		{Role: model.MessageUser, Content: "chase late payers"},
		{Role: model.MessageAssistant, ToolCalls: []model.ToolCallRequest{
			{ID: "1", Name: "chase_late_payers", Arguments: `{"today":"2025-01-20"}`},
			{ID: "2", Name: "weekly_summary", Arguments: ""},
		}},
		{Role: model.MessageTool, ToolCallID: "1", Name: "chase_late_payers", Content: `{"ok":true}`},
		{Role: model.MessageTool, ToolCallID: "2", Name: "weekly_summary", Content: `not json`},
	}
	tools := []model.ToolSpec{{Name: "chase_late_payers", Description: "chase", Parameters: map[string]interface{}{"type": "object"}}}

	resp, err := c.Chat(context.Background(), msgs, tools)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "Done." || resp.FinishReason != string(genai.FinishReasonStop) {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if fake.model != DefaultModel {
		t.Fatalf("model = %q", fake.model)
	}
	if sys := fake.config.SystemInstruction; sys == nil || len(sys.Parts) != 2 || sys.Parts[0].Text != "be brief" {
		t.Fatalf("system instruction not built from system messages: %+v", sys)
	}
	if len(fake.config.Tools) != 1 || fake.config.Tools[0].FunctionDeclarations[0].Name != "chase_late_payers" {
		t.Fatalf("tools not declared: %+v", fake.config.Tools)
	}
	if len(fake.contents) != 3 {
		t.Fatalf("expected user, model and one tool turn, got %d", len(fake.contents))
	}
	calls := fake.contents[1].Parts
	if fake.contents[1].Role != string(genai.RoleModel) || len(calls) != 2 || calls[0].FunctionCall.Args["today"] != "2025-01-20" {
		t.Fatalf("unexpected model turn: %+v", fake.contents[1])
	}
	if len(calls[1].FunctionCall.Args) != 0 {
		t.Fatalf("empty arguments should decode to an empty object: %+v", calls[1].FunctionCall.Args)
	}
	results := fake.contents[2].Parts
	if len(results) != 2 || results[0].FunctionResponse.Response["ok"] != true {
		t.Fatalf("unexpected tool turn: %+v", fake.contents[2])
	}
	if results[1].FunctionResponse.Response["output"] != "not json" {
		t.Fatalf("non-JSON tool output should be wrapped: %+v", results[1].FunctionResponse.Response)
	}
}

func TestChat_NoToolsOffered(t *testing.T) {
	fake := &fakeGenerator{resp: textResponse(&genai.Part{Text: "sum"}, &genai.Part{Text: "mary"})}
	resp, err := newWithGenerator(fake, "gemini-test").Chat(context.Background(),
		[]model.ChatMessage{{Role: model.MessageUser, Content: "wrap up"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if fake.config.Tools != nil || fake.config.SystemInstruction != nil {
		t.Fatalf("unexpected config: %+v", fake.config)
	}
	if resp.Content != "summary" || fake.model != "gemini-test" {
		t.Fatalf("unexpected response %+v for model %s", resp, fake.model)
	}
}

func TestChat_ParsesFunctionCalls(t *testing.T) {
	fake := &fakeGenerator{resp: textResponse(
		&genai.Part{Text: "Let me check."},
		&genai.Part{FunctionCall: &genai.FunctionCall{Name: "find_client", Args: map[string]any{"query": "acme"}}},
		&genai.Part{FunctionCall: &genai.FunctionCall{ID: "x", Name: "weekly_summary"}},
	)}
	resp, err := newWithGenerator(fake, "").Chat(context.Background(),
		[]model.ChatMessage{{Role: model.MessageUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "Let me check." || len(resp.ToolCalls) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got := resp.ToolCalls[0]; got.Name != "find_client" || got.Arguments != `{"query":"acme"}` || got.ID != "" {
		t.Fatalf("unexpected call: %+v", got)
	}
	if got := resp.ToolCalls[1]; got.ID != "x" || got.Arguments != "{}" {
		t.Fatalf("nil args should encode as an empty object: %+v", got)
	}
}

func TestChat_ErrorsAreProviderErrors(t *testing.T) {
	fake := &fakeGenerator{err: errors.New("dial tcp: connection refused")}
	_, err := newWithGenerator(fake, "").Chat(context.Background(),
		[]model.ChatMessage{{Role: model.MessageUser, Content: "hi"}}, nil)
	var pe *model.ProviderError
	if !errors.As(err, &pe) || pe.Code != "GEMINI_UNAVAILABLE" || !pe.Retryable {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.KindOf(err) != model.KindTransportFailure {
		t.Fatalf("kind = %q", model.KindOf(err))
	}
}

func TestChat_EmptyCandidates(t *testing.T) {
	fake := &fakeGenerator{resp: &genai.GenerateContentResponse{}}
	_, err := newWithGenerator(fake, "").Chat(context.Background(),
		[]model.ChatMessage{{Role: model.MessageUser, Content: "hi"}}, nil)
	var pe *model.ProviderError
	if !errors.As(err, &pe) || pe.Code != "GEMINI_FAILED" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Options{})
	var pe *model.ProviderError
	if !errors.As(err, &pe) || pe.Code != "GEMINI_AUTH" {
		t.Fatalf("unexpected error: %v", err)
	}
}
