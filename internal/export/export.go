// Package export writes workspace data as JSON, CSV and invoice PDFs.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"bizassist/internal/model"
)

// ErrNoRecords is returned when a CSV export has nothing to write.
var ErrNoRecords = errors.New("no records to export")

// Collections lists the workspace collections that can be exported.
var Collections = []string{"users", "clients", "projects", "tasks", "invoices", "payments", "expenses"}

// Collection returns one named collection of ws.
func Collection(ws model.Workspace, name string) (interface{}, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "users":
		return ws.Users, nil
	case "clients":
		return ws.Clients, nil
	case "projects":
		return ws.Projects, nil
	case "tasks":
		return ws.Tasks, nil
	case "invoices":
		return ws.Invoices, nil
	case "payments":
		return ws.Payments, nil
	case "expenses":
		return ws.Expenses, nil
	default:
		return nil, model.NotFound("unknown collection %q; expected one of %s", name, strings.Join(Collections, ", "))
	}
}

// WriteJSON writes v as indented JSON without HTML escaping.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteCSV writes a slice of records (structs or maps) as CSV. Columns follow
// the JSON field order of the first record; keys first seen in later records
// are appended. Nested values are written as compact JSON.
func WriteCSV(w io.Writer, records interface{}) error {
	rows, header, err := flatten(records)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		line := make([]string, len(header))
		for i, key := range header {
			line[i] = cell(row[key])
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func flatten(records interface{}) ([]map[string]json.RawMessage, []string, error) {
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, nil, fmt.Errorf("encode records: %w", err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, fmt.Errorf("records must be a list: %w", err)
	}
	if len(items) == 0 {
		return nil, nil, ErrNoRecords
	}

	var header []string
	seen := map[string]bool{}
	rows := make([]map[string]json.RawMessage, 0, len(items))
	for i, item := range items {
		keys, err := objectKeys(item)
		if err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", i, err)
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
		var row map[string]json.RawMessage
		if err := json.Unmarshal(item, &row); err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

// objectKeys returns the keys of a JSON object in document order. Map
// records marshal with sorted keys, so their order is alphabetical.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("record is not an object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func cell(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}
