package selectors

import (
	"testing"
	"time"

	"bizassist/internal/model"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}

func TestScoreBounds(t *testing.T) {
	if got := Score("Acme Ltd", "acme ltd"); got != 100 {
		t.Fatalf("identical names after normalisation should score 100, got %d", got)
	}
	if got := Score("", "Acme"); got != 0 {
		t.Fatalf("empty query should score 0, got %d", got)
	}
	if got := Score("zzzz", "Acme"); got < 0 || got > 100 {
		t.Fatalf("score out of range: %d", got)
	}
	if Score("acme", "Acme Ltd") <= Score("acme", "Globex Corporation") {
		t.Fatal("partial match should outrank an unrelated name")
	}
	if got := Score("ltd acme", "Acme Ltd"); got < 90 {
		t.Fatalf("token order should barely matter, got %d", got)
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio("abcd", "abcd"); got != 100 {
		t.Fatalf("Ratio identical = %v", got)
	}
	if got := Ratio("abcd", ""); got != 0 {
		t.Fatalf("Ratio against empty = %v", got)
	}
	if got := Ratio("abcd", "abxy"); got != 50 {
		t.Fatalf("Ratio half match = %v", got)
	}
}

func TestClientCandidatesOrdering(t *testing.T) {
	clients := []model.Client{
		{ID: "c1", Name: "Globex Corporation"},
		{ID: "c2", Name: "Acme Ltd"},
		{ID: "c3", Name: "Acme Holdings"},
	}
	got := ClientCandidates(clients, "acme ltd", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Client.ID != "c2" {
		t.Fatalf("expected Acme Ltd first, got %+v", got)
	}
	if got[0].Score < got[1].Score {
		t.Fatalf("candidates not sorted: %+v", got)
	}
}

func TestOverdueBoundaries(t *testing.T) {
	inv := model.Invoice{ID: "i1", Date: "2025-01-01", DueDays: 14, Status: model.InvoiceStatusDraft}
	if !IsOverdue(inv, day(t, "2025-01-20")) {
		t.Fatal("invoice due 2025-01-15 should be overdue on 2025-01-20")
	}
	if IsOverdue(inv, day(t, "2025-01-10")) {
		t.Fatal("invoice should not be overdue on 2025-01-10")
	}
	if IsOverdue(inv, day(t, "2025-01-15")) {
		t.Fatal("invoice is not overdue on its due date")
	}
	inv.Status = model.InvoiceStatusPaid
	if IsOverdue(inv, day(t, "2030-01-01")) {
		t.Fatal("paid invoices are never overdue")
	}
}

func TestTasksForProjectSortsUndatedLast(t *testing.T) {
	tasks := []model.Task{
		{ID: "t1", ProjectID: "p1", Title: "Zeta", Status: model.TaskTodo},
		{ID: "t2", ProjectID: "p1", Title: "Beta", Status: model.TaskTodo, DueDate: "2025-03-01"},
		{ID: "t3", ProjectID: "p1", Title: "Alpha", Status: model.TaskDoing},
		{ID: "t4", ProjectID: "p2", Title: "Other", Status: model.TaskTodo},
		{ID: "t5", ProjectID: "p1", Title: "Aardvark", Status: model.TaskTodo, DueDate: "2025-03-01"},
	}
	got := TasksForProject(tasks, "p1", "")
	var ids []string
	for _, tk := range got {
		ids = append(ids, tk.ID)
	}
	want := []string{"t5", "t2", "t3", "t1"}
	if len(ids) != len(want) {
		t.Fatalf("got %v want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v want %v", ids, want)
		}
	}

	todo := TasksForProject(tasks, "p1", model.TaskTodo)
	if len(todo) != 3 {
		t.Fatalf("expected 3 todo tasks, got %d", len(todo))
	}
}

func TestResolveTaskByTitle(t *testing.T) {
	tasks := []model.Task{
		{ID: "t1", ProjectID: "p1", Title: "Hire designer"},
		{ID: "t2", ProjectID: "p2", Title: "Hire developer"},
	}
	got, _, ok := ResolveTaskByTitle(tasks, "hire designer", "", 60)
	if !ok || got.ID != "t1" {
		t.Fatalf("expected t1, got %+v ok=%v", got, ok)
	}
	got, _, ok = ResolveTaskByTitle(tasks, "hire", "p2", 60)
	if !ok || got.ID != "t2" {
		t.Fatalf("project filter should pick t2, got %+v ok=%v", got, ok)
	}
	if _, _, ok := ResolveTaskByTitle(tasks, "quarterly tax filing", "", 60); ok {
		t.Fatal("unrelated query should not resolve")
	}
	if _, _, ok := ResolveTaskByTitle(tasks, "hire designer", "p404", 60); ok {
		t.Fatal("empty pool should not resolve")
	}
}

func TestWeekBounds(t *testing.T) {
	cases := map[string][2]string{
		"2025-01-15": {"2025-01-13", "2025-01-19"}, // Wednesday
		"2025-01-13": {"2025-01-13", "2025-01-19"}, // Monday
		"2025-01-19": {"2025-01-13", "2025-01-19"}, // Sunday
	}
	for in, want := range cases {
		start, end := WeekBounds(day(t, in))
		if model.FormatDate(start) != want[0] || model.FormatDate(end) != want[1] {
			t.Errorf("WeekBounds(%s) = %s..%s, want %s..%s", in,
				model.FormatDate(start), model.FormatDate(end), want[0], want[1])
		}
	}
	start, end := WeekBounds(day(t, "2025-01-15"))
	if !InWindow("2025-01-13", start, end) || !InWindow("2025-01-19", start, end) {
		t.Fatal("window is inclusive on both ends")
	}
	if InWindow("2025-01-20", start, end) || InWindow("garbage", start, end) {
		t.Fatal("dates outside the window or malformed must be excluded")
	}
}

func TestRecentAndActive(t *testing.T) {
	projects := []model.Project{{ID: "p1", ClientID: "c1", Status: "Active"}}
	if !HasActiveProject(projects, "c1") || HasActiveProject(projects, "c2") {
		t.Fatal("active project detection wrong")
	}
	invoices := []model.Invoice{{ID: "i1", ClientID: "c1", Date: "2025-01-01"}}
	if !HasRecentInvoice(invoices, "c1", day(t, "2025-03-01")) {
		t.Fatal("59 days old should be recent")
	}
	if HasRecentInvoice(invoices, "c1", day(t, "2025-03-03")) {
		t.Fatal("61 days old should not be recent")
	}
}
