// Package tools implements the business actions the assistant can take
// against a workspace, and the registry that advertises and dispatches them.
package tools

import (
	"time"

	"bizassist/internal/model"
	"bizassist/internal/workspace"
)

// Session carries the caller's identity and preferences into every tool.
// The model never chooses the role.
type Session struct {
	Role     model.Role
	Persona  model.Persona
	Currency model.Currency
	Clock    model.Clock
}

func (s Session) today() time.Time {
	clock := s.Clock
	if clock == nil {
		clock = model.SystemClock
	}
	return model.Day(clock.Now())
}

func (s Session) currency() model.Currency {
	if s.Currency == "" {
		return model.DefaultCurrency
	}
	return s.Currency
}

// persona prefers an explicit per-call persona over the session's.
func (s Session) persona(override model.Persona) model.Persona {
	if override != "" {
		return override
	}
	return model.ParsePersona(string(s.Persona))
}

// Outcome is what a successful tool returns: a structured result for the
// model and a one-line summary for people.
type Outcome struct {
	Result  interface{} `json:"result"`
	Summary string      `json:"summary"`
}

// Tools binds the tool implementations to one workspace.
type Tools struct {
	store   *workspace.Store
	dueDays int
}

type Option func(*Tools)

// WithDefaultDueDays sets the payment term used when create_invoice omits
// due_days.
func WithDefaultDueDays(days int) Option {
	return func(t *Tools) {
		if days > 0 {
			t.dueDays = days
		}
	}
}

func New(store *workspace.Store, opts ...Option) *Tools {
	t := &Tools{store: store, dueDays: model.DefaultTermDays}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Store exposes the workspace the tools act on.
func (t *Tools) Store() *workspace.Store {
	return t.store
}

func clientName(store *workspace.Store, id string) string {
	if c, ok := store.Client(id); ok && c.Name != "" {
		return c.Name
	}
	return "Unknown client"
}

func projectLabel(p model.Project) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
