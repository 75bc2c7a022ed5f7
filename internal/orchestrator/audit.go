package orchestrator

import (
	"strconv"
	"sync"
	"time"

	"bizassist/internal/model"
)

// Audit step names.
const (
	StepToolCall         = "tool_call"
	StepToolResult       = "tool_result"
	StepMaxRoundsReached = "max_rounds_reached"
)

// StepModelRound names the audit step for a content-only model round.
func StepModelRound(n int) string {
	return "model_round_" + strconv.Itoa(n)
}

// AuditEntry records one step of a run. Entries are values; once appended
// they are never changed.
type AuditEntry struct {
	Step       string            `json:"step"`
	OK         bool              `json:"ok"`
	Detail     string            `json:"detail"`
	ToolCall   *model.ToolCall   `json:"tool_call,omitempty"`
	ToolResult *model.ToolResult `json:"tool_result,omitempty"`
	Time       time.Time         `json:"time"`
}

// AuditLog is the ordered, append-only trail of a single run.
type AuditLog struct {
	mu       sync.Mutex
	entries  []AuditEntry
	now      func() time.Time
	observer func(AuditEntry)
}

func newAuditLog(now func() time.Time, observer func(AuditEntry)) *AuditLog {
	if now == nil {
		now = time.Now
	}
	return &AuditLog{now: now, observer: observer}
}

func (l *AuditLog) append(e AuditEntry) {
	e.Time = l.now()
	if e.ToolCall != nil {
		c := *e.ToolCall
		c.Arguments = copyArgs(c.Arguments)
		e.ToolCall = &c
	}
	if e.ToolResult != nil {
		r := *e.ToolResult
		e.ToolResult = &r
	}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	observer := l.observer
	l.mu.Unlock()
	if observer != nil {
		observer(e)
	}
}

// Entries returns a copy of the log.
func (l *AuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AuditEntry(nil), l.entries...)
}

// Len reports how many entries have been appended.
func (l *AuditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func copyArgs(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
