package model

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Role  Role   `json:"role" yaml:"role"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

type Client struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Currency   Currency `json:"currency" yaml:"currency"`
	DefaultVAT float64  `json:"default_vat" yaml:"default_vat"`
	Email      string   `json:"email,omitempty" yaml:"email,omitempty"`
}

type Project struct {
	ID       string `json:"id" yaml:"id"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Name     string `json:"name" yaml:"name"`
	Status   string `json:"status" yaml:"status"`
}

// Active reports whether the project counts as live work.
func (p Project) Active() bool {
	return strings.EqualFold(strings.TrimSpace(p.Status), ProjectStatusActive)
}

type Task struct {
	ID             string     `json:"id" yaml:"id"`
	ProjectID      string     `json:"project_id" yaml:"project_id"`
	Title          string     `json:"title" yaml:"title"`
	Status         TaskStatus `json:"status" yaml:"status"`
	AssigneeUserID string     `json:"assignee_user_id,omitempty" yaml:"assignee_user_id,omitempty"`
	DueDate        string     `json:"due_date,omitempty" yaml:"due_date,omitempty"`
}

type LineItem struct {
	Description string  `json:"description" yaml:"description"`
	Quantity    float64 `json:"qty" yaml:"qty"`
	UnitPrice   float64 `json:"unit_price" yaml:"unit_price"`
}

// Amount is quantity times unit price, unrounded.
func (li LineItem) Amount() float64 {
	return li.Quantity * li.UnitPrice
}

type Invoice struct {
	ID        string     `json:"id" yaml:"id"`
	ClientID  string     `json:"client_id" yaml:"client_id"`
	Number    string     `json:"number" yaml:"number"`
	Date      string     `json:"date" yaml:"date"`
	DueDays   int        `json:"due_days" yaml:"due_days"`
	Currency  Currency   `json:"currency" yaml:"currency"`
	VATRate   float64    `json:"vat_rate" yaml:"vat_rate"`
	LineItems []LineItem `json:"line_items" yaml:"line_items"`
	Status    string     `json:"status" yaml:"status"`
	Subtotal  float64    `json:"subtotal" yaml:"subtotal"`
	VAT       float64    `json:"vat" yaml:"vat"`
	Total     float64    `json:"total" yaml:"total"`
	Notes     string     `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// DueDate returns the issue date plus the payment term.
func (inv Invoice) DueDate() (time.Time, error) {
	issued, err := ParseDate(inv.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invoice %s: %w", inv.ID, err)
	}
	return issued.AddDate(0, 0, inv.DueDays), nil
}

// Paid reports whether the invoice has been settled.
func (inv Invoice) Paid() bool {
	return strings.EqualFold(strings.TrimSpace(inv.Status), InvoiceStatusPaid)
}

type Payment struct {
	ID        string  `json:"id" yaml:"id"`
	InvoiceID string  `json:"invoice_id" yaml:"invoice_id"`
	Amount    float64 `json:"amount" yaml:"amount"`
	Date      string  `json:"date" yaml:"date"`
}

type Expense struct {
	ID          string   `json:"id" yaml:"id"`
	ProjectID   string   `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	ClientID    string   `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	Description string   `json:"description" yaml:"description"`
	Amount      float64  `json:"amount" yaml:"amount"`
	Currency    Currency `json:"currency" yaml:"currency"`
	Date        string   `json:"date" yaml:"date"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
}

// Workspace is a full snapshot of the session dataset.
type Workspace struct {
	Users    []User    `json:"users" yaml:"users"`
	Clients  []Client  `json:"clients" yaml:"clients"`
	Projects []Project `json:"projects" yaml:"projects"`
	Tasks    []Task    `json:"tasks" yaml:"tasks"`
	Invoices []Invoice `json:"invoices" yaml:"invoices"`
	Payments []Payment `json:"payments" yaml:"payments"`
	Expenses []Expense `json:"expenses" yaml:"expenses"`
}

// ParseDate parses an ISO calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders t as an ISO calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
