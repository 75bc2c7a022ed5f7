package model

import (
	"context"
	"time"
)

// ChatModel is a language model endpoint with function calling. A nil tools
// slice means no tools are offered and the model must answer in text.
type ChatModel interface {
	Chat(ctx context.Context, messages []ChatMessage, tools []ToolSpec) (ChatResponse, error)
}

// Clock supplies the current time; tools derive "today" from it.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// FixedClock always reports t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}
