package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestInvoiceJSONFieldNames(t *testing.T) {
	inv := Invoice{
		ID:        "inv_2025_081",
		ClientID:  "c1",
		Number:    "INV-2025-081",
		Date:      "2025-01-01",
		DueDays:   14,
		Currency:  GBP,
		VATRate:   0.2,
		LineItems: []LineItem{{Description: "Retainer", Quantity: 1, UnitPrice: 1200}},
		Status:    InvoiceStatusDraft,
	}
	data, err := json.Marshal(inv)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"id", "client_id", "number", "date", "due_days", "currency", "vat_rate", "line_items", "status", "subtotal", "vat", "total"} {
		if _, ok := out[key]; !ok {
			t.Errorf("expected key %q in json output", key)
		}
	}
	if _, ok := out["notes"]; ok {
		t.Errorf("empty notes should be omitted")
	}
	items := out["line_items"].([]interface{})
	if _, ok := items[0].(map[string]interface{})["qty"]; !ok {
		t.Errorf("line item quantity should encode as qty")
	}
}

func TestInvoiceDueDate(t *testing.T) {
	inv := Invoice{ID: "i1", Date: "2025-01-01", DueDays: 14}
	due, err := inv.DueDate()
	if err != nil {
		t.Fatalf("DueDate failed: %v", err)
	}
	if got := FormatDate(due); got != "2025-01-15" {
		t.Fatalf("unexpected due date: %s", got)
	}

	inv.Date = "01/01/2025"
	if _, err := inv.DueDate(); err == nil {
		t.Fatal("expected malformed date error")
	}
}

func TestParseHelpers(t *testing.T) {
	if c, ok := ParseCurrency(" gbp "); !ok || c != GBP {
		t.Fatalf("ParseCurrency(gbp) = %q, %v", c, ok)
	}
	if _, ok := ParseCurrency("JPY"); ok {
		t.Fatal("JPY should not be supported")
	}
	if st, ok := ParseTaskStatus("Doing"); !ok || st != TaskDoing {
		t.Fatalf("ParseTaskStatus(Doing) = %q, %v", st, ok)
	}
	if _, ok := ParseTaskStatus("blocked"); ok {
		t.Fatal("blocked should not be a task status")
	}
	if r, ok := ParseRole(" Manager"); !ok || r != RoleManager {
		t.Fatalf("ParseRole(Manager) = %q, %v", r, ok)
	}
	if _, ok := ParseRole("admin"); ok {
		t.Fatal("admin should not be a role")
	}
	if p := ParsePersona("intern"); p != PersonaIntern {
		t.Fatalf("ParsePersona(intern) = %q", p)
	}
	if p := ParsePersona("pirate"); p != PersonaPA {
		t.Fatalf("unknown persona should fall back to PA, got %q", p)
	}
	if GBP.Symbol() != "£" || EUR.Symbol() != "€" || USD.Symbol() != "$" {
		t.Fatal("unexpected currency symbols")
	}
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("client %q not found", "c9"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected errors.Is NotFound, got %v", err)
	}
	if errors.Is(err, ErrForbidden) {
		t.Fatal("NotFound must not match Forbidden")
	}
	if got := KindOf(err); got != KindNotFound {
		t.Fatalf("KindOf = %q", got)
	}
	if got := err.Error(); got != `wrapped: NOT_FOUND: client "c9" not found` {
		t.Fatalf("unexpected message: %q", got)
	}

	pe := &ProviderError{Code: "UNAVAILABLE", Message: "down", StatusCode: 503}
	if got := KindOf(fmt.Errorf("call: %w", pe)); got != KindTransportFailure {
		t.Fatalf("provider errors should classify as transport failure, got %q", got)
	}
	tf := TransportFailure(pe, "model call failed")
	var unwrapped *ProviderError
	if !errors.As(tf, &unwrapped) || unwrapped.StatusCode != 503 {
		t.Fatalf("transport failure should unwrap to provider error")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("plain errors carry no kind")
	}
}

func TestCancelledKind(t *testing.T) {
	err := Cancelled(context.DeadlineExceeded)
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Cancelled should match its kind and cause, got %v", err)
	}
	if errors.Is(err, ErrInvalidArgument) || KindOf(err) != KindCancelled {
		t.Fatalf("unexpected classification %q", KindOf(err))
	}
}

func TestToolResultJSONCarriesOutputOrError(t *testing.T) {
	failed, err := json.Marshal(ToolResult{Name: "move_task", Error: "NOT_FOUND: no task"})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(failed); got != `{"name":"move_task","ok":false,"error":"NOT_FOUND: no task"}` {
		t.Fatalf("failed result = %s", got)
	}
	ok, err := json.Marshal(ToolResult{Name: "list_tasks", OK: true, Output: []string{"t1"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(ok); got != `{"name":"list_tasks","ok":true,"output":["t1"]}` {
		t.Fatalf("successful result = %s", got)
	}
}

func TestDecodeToolCall(t *testing.T) {
	call, err := DecodeToolCall(ToolCallRequest{ID: "c1", Name: " find_client ", Arguments: `{"query":"acme"}`})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if call.Name != "find_client" || call.Arguments["query"] != "acme" {
		t.Fatalf("unexpected call: %+v", call)
	}

	empty, err := DecodeToolCall(ToolCallRequest{Name: "weekly_summary"})
	if err != nil || empty.Arguments == nil || len(empty.Arguments) != 0 {
		t.Fatalf("empty arguments should decode to empty map: %+v %v", empty, err)
	}

	_, err = DecodeToolCall(ToolCallRequest{Name: "x", Arguments: "{not json"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestScriptedModelRepeatsLastResponse(t *testing.T) {
	m := NewScriptedModel(ChatResponse{Content: "one"}, ChatResponse{Content: "two"})
	m.FailAt(3, errors.New("boom"))
	ctx := context.Background()
	var got []string
	for i := 0; i < 3; i++ {
		resp, err := m.Chat(ctx, []ChatMessage{{Role: MessageUser, Content: "hi"}}, nil)
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		got = append(got, resp.Content)
	}
	if fmt.Sprint(got) != "[one two two]" {
		t.Fatalf("unexpected replay: %v", got)
	}
	if _, err := m.Chat(ctx, nil, nil); err == nil {
		t.Fatal("expected scripted failure on fourth call")
	}
	if len(m.Calls()) != 4 {
		t.Fatalf("expected 4 recorded calls, got %d", len(m.Calls()))
	}
}
