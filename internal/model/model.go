package model

import (
	"strings"
)

// Currency is a supported ISO 4217 code.
type Currency string

const (
	USD Currency = "USD"
	GBP Currency = "GBP"
	EUR Currency = "EUR"
)

// Currencies lists the supported currencies in display order.
var Currencies = []Currency{USD, GBP, EUR}

// DefaultCurrency is used when neither the client nor the session supplies one.
const DefaultCurrency = USD

// DefaultVAT holds the fallback VAT rate per currency.
var DefaultVAT = map[Currency]float64{
	USD: 0.0,
	GBP: 0.2,
	EUR: 0.2,
}

// DefaultTermDays is the payment term applied to new invoices.
const DefaultTermDays = 14

// ParseCurrency normalises s and reports whether it is supported.
func ParseCurrency(s string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Currencies {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Symbol returns the display symbol for c.
func (c Currency) Symbol() string {
	switch c {
	case GBP:
		return "£"
	case EUR:
		return "€"
	default:
		return "$"
	}
}

// Role is a workspace role string.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
	RoleViewer  Role = "viewer"
)

// Roles lists every known role.
var Roles = []Role{RoleOwner, RoleManager, RoleMember, RoleViewer}

// ParseRole lowercases and validates s.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskTodo  TaskStatus = "todo"
	TaskDoing TaskStatus = "doing"
	TaskDone  TaskStatus = "done"
)

// TaskStatuses lists valid task statuses.
var TaskStatuses = []TaskStatus{TaskTodo, TaskDoing, TaskDone}

// ParseTaskStatus lowercases and validates s.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	st := TaskStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range TaskStatuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// Persona selects the assistant's tone.
type Persona string

const (
	PersonaPA         Persona = "PA"
	PersonaAccountant Persona = "Accountant"
	PersonaIntern     Persona = "Intern"
)

// Personas lists the supported personas.
var Personas = []Persona{PersonaPA, PersonaAccountant, PersonaIntern}

// DefaultPersona is applied when no persona is configured.
const DefaultPersona = PersonaPA

// ParsePersona maps s onto a known persona, falling back to PA.
func ParsePersona(s string) Persona {
	s = strings.TrimSpace(s)
	for _, p := range Personas {
		if strings.EqualFold(s, string(p)) {
			return p
		}
	}
	return DefaultPersona
}

const (
	InvoiceStatusDraft = "draft"
	InvoiceStatusPaid  = "paid"

	ProjectStatusActive = "active"
)

// DateLayout is the ISO calendar date layout used by every record.
const DateLayout = "2006-01-02"
