package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ScriptedModel replays canned responses in order. When the script runs out
// the last response repeats. Every request is recorded for inspection.
type ScriptedModel struct {
	mu        sync.Mutex
	responses []ChatResponse
	errs      []error
	calls     []ScriptedCall
}

// ScriptedCall is one recorded request.
type ScriptedCall struct {
	Messages []ChatMessage
	Tools    []ToolSpec
}

func NewScriptedModel(responses ...ChatResponse) *ScriptedModel {
	return &ScriptedModel{responses: responses}
}

// FailAt makes the n-th call (zero based) return err.
func (m *ScriptedModel) FailAt(n int, err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.errs) <= n {
		m.errs = append(m.errs, nil)
	}
	m.errs[n] = err
	return m
}

func (m *ScriptedModel) Chat(ctx context.Context, messages []ChatMessage, tools []ToolSpec) (ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return ChatResponse{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.calls)
	m.calls = append(m.calls, ScriptedCall{
		Messages: append([]ChatMessage(nil), messages...),
		Tools:    append([]ToolSpec(nil), tools...),
	})
	if idx < len(m.errs) && m.errs[idx] != nil {
		return ChatResponse{}, m.errs[idx]
	}
	if len(m.responses) == 0 {
		return ChatResponse{}, errors.New("scripted model has no responses")
	}
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// Calls returns a copy of the recorded requests.
func (m *ScriptedModel) Calls() []ScriptedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ScriptedCall(nil), m.calls...)
}

// LoadScript reads a JSON array of ChatResponse values from path.
func LoadScript(path string) (*ScriptedModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}
	var responses []ChatResponse
	if err := json.Unmarshal(data, &responses); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	if len(responses) == 0 {
		return nil, fmt.Errorf("script %s has no responses", path)
	}
	return NewScriptedModel(responses...), nil
}
