package workspace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bizassist/internal/model"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a workspace seed.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// RequiredKeys must be present in every seed; payments and expenses may be
// omitted and default to empty.
var RequiredKeys = []string{"users", "clients", "projects", "tasks", "invoices"}

// FormatForPath picks the seed format from the file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadFile reads and decodes a seed file.
func LoadFile(path string) (model.Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Workspace{}, fmt.Errorf("read workspace seed %s: %w", path, err)
	}
	ws, err := Decode(data, FormatForPath(path))
	if err != nil {
		return model.Workspace{}, fmt.Errorf("workspace seed %s: %w", path, err)
	}
	return ws, nil
}

// Open loads a seed file and wraps it in a validated Store.
func Open(path string, opts ...Option) (*Store, error) {
	ws, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := New(ws, opts...)
	if err != nil {
		return nil, fmt.Errorf("workspace seed %s: %w", path, err)
	}
	return s, nil
}

// invoiceTerms records, per seed invoice, whether due_days was written
// out. An explicit 0 is a valid term and must survive normalise.
type invoiceTerms struct {
	Invoices []struct {
		DueDays *int `json:"due_days" yaml:"due_days"`
	} `json:"invoices" yaml:"invoices"`
}

func (t invoiceTerms) hasDueDays(i int) bool {
	return i < len(t.Invoices) && t.Invoices[i].DueDays != nil
}

// Decode parses a seed document and checks the required top-level keys.
func Decode(data []byte, format Format) (model.Workspace, error) {
	var (
		ws    model.Workspace
		terms invoiceTerms
	)
	switch format {
	case FormatYAML:
		var keys map[string]interface{}
		if err := yaml.Unmarshal(data, &keys); err != nil {
			return ws, model.InvalidArgument("malformed YAML: %v", err)
		}
		if err := requireKeys(keys); err != nil {
			return ws, err
		}
		if err := yaml.Unmarshal(data, &ws); err != nil {
			return ws, model.InvalidArgument("malformed YAML: %v", err)
		}
		if err := yaml.Unmarshal(data, &terms); err != nil {
			return ws, model.InvalidArgument("malformed YAML: %v", err)
		}
	case FormatJSON:
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(data, &keys); err != nil {
			return ws, model.InvalidArgument("malformed JSON: %v", err)
		}
		if err := requireKeys(keys); err != nil {
			return ws, err
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&ws); err != nil {
			return ws, model.InvalidArgument("malformed JSON: %v", err)
		}
		if err := json.Unmarshal(data, &terms); err != nil {
			return ws, model.InvalidArgument("malformed JSON: %v", err)
		}
	default:
		return ws, model.InvalidArgument("unsupported seed format %q", format)
	}
	normalise(&ws, terms)
	return ws, nil
}

func requireKeys[V any](keys map[string]V) error {
	for _, k := range RequiredKeys {
		if _, ok := keys[k]; !ok {
			return model.MissingField("workspace seed missing %q", k)
		}
	}
	return nil
}

// normalise fills defaults the seed may leave out.
func normalise(ws *model.Workspace, terms invoiceTerms) {
	if ws.Payments == nil {
		ws.Payments = []model.Payment{}
	}
	if ws.Expenses == nil {
		ws.Expenses = []model.Expense{}
	}
	for i := range ws.Invoices {
		inv := &ws.Invoices[i]
		if !terms.hasDueDays(i) {
			inv.DueDays = model.DefaultTermDays
		}
		if inv.Status == "" {
			inv.Status = model.InvoiceStatusDraft
		}
		if inv.Currency == "" {
			inv.Currency = model.DefaultCurrency
		}
	}
	for i := range ws.Tasks {
		if ws.Tasks[i].Status == "" {
			ws.Tasks[i].Status = model.TaskTodo
		}
	}
	for i := range ws.Clients {
		c := &ws.Clients[i]
		if c.Currency == "" {
			c.Currency = model.DefaultCurrency
		} else if cur, ok := model.ParseCurrency(string(c.Currency)); ok {
			c.Currency = cur
		}
	}
}
