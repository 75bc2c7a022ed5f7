package model

import (
	"encoding/json"
	"strings"
)

const (
	MessageSystem    = "system"
	MessageUser      = "user"
	MessageAssistant = "assistant"
	MessageTool      = "tool"
)

// ChatMessage is one turn of a tool-calling conversation.
type ChatMessage struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Name       string            `json:"name,omitempty"`
}

// ToolCallRequest is a call as emitted by the model: arguments are the raw
// JSON blob it produced.
type ToolCallRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSpec advertises one tool to the model.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ChatResponse is the model's reply to one request.
type ChatResponse struct {
	Content      string            `json:"content"`
	ToolCalls    []ToolCallRequest `json:"tool_calls,omitempty"`
	FinishReason string            `json:"finish_reason,omitempty"`
}

// ToolCall is a decoded call ready for dispatch.
type ToolCall struct {
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolResult carries either Output or Error, never both.
type ToolResult struct {
	Name   string      `json:"name"`
	OK     bool        `json:"ok"`
	Output interface{} `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// DecodeToolCall parses the raw argument blob of req. An empty blob decodes
// to an empty argument map.
func DecodeToolCall(req ToolCallRequest) (ToolCall, error) {
	call := ToolCall{ID: req.ID, Name: strings.TrimSpace(req.Name), Arguments: map[string]interface{}{}}
	raw := strings.TrimSpace(req.Arguments)
	if raw == "" || raw == "null" {
		return call, nil
	}
	if err := json.Unmarshal([]byte(raw), &call.Arguments); err != nil {
		return call, InvalidArgument("arguments for %s are not a JSON object: %v", call.Name, err)
	}
	if call.Arguments == nil {
		call.Arguments = map[string]interface{}{}
	}
	return call, nil
}
