package tools

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"bizassist/internal/model"
	"bizassist/internal/workspace"
)

func fixtureWorkspace() model.Workspace {
	return model.Workspace{
		Users: []model.User{
			{ID: "u1", Name: "Olivia", Role: model.RoleOwner},
			{ID: "u2", Name: "Marcus", Role: model.RoleManager},
			{ID: "u3", Name: "Priya", Role: model.RoleMember},
			{ID: "u4", Name: "Victor", Role: model.RoleViewer},
		},
		Clients: []model.Client{
			{ID: "c1", Name: "Acme Ltd", Currency: model.GBP, DefaultVAT: 0.2},
			{ID: "c2", Name: "Globex Corporation", Currency: model.USD, DefaultVAT: 0},
			{ID: "c3", Name: "Initech GmbH", Currency: model.EUR, DefaultVAT: 0.19},
		},
		Projects: []model.Project{
			{ID: "p1", ClientID: "c1", Name: "Website", Status: "active"},
			{ID: "p2", ClientID: "c2", Name: "Migration", Status: "paused"},
			{ID: "p3", ClientID: "c3", Name: "Audit", Status: "active"},
		},
		Tasks: []model.Task{
			{ID: "t1", ProjectID: "p1", Title: "Hire designer", Status: model.TaskTodo, AssigneeUserID: "u3", DueDate: "2025-02-01"},
			{ID: "t2", ProjectID: "p1", Title: "Write copy", Status: model.TaskDoing},
			{ID: "t3", ProjectID: "p2", Title: "Collect receipts", Status: model.TaskDone, DueDate: "2025-01-15"},
		},
		Invoices: []model.Invoice{{
			ID: "inv_2025_081", ClientID: "c1", Number: "INV-2025-081", Date: "2025-01-01", DueDays: 14,
			Currency: model.GBP, VATRate: 0.2, Status: model.InvoiceStatusDraft,
			LineItems: []model.LineItem{{Description: "Retainer", Quantity: 1, UnitPrice: 1200}},
			Subtotal:  1200, VAT: 240, Total: 1440,
		}},
		Payments: []model.Payment{{ID: "pay1", InvoiceID: "inv_2025_081", Amount: 500, Date: "2025-01-14"}},
		Expenses: []model.Expense{
			{ID: "ex1", Description: "Stock photos", Amount: 18, Currency: model.GBP, Date: "2025-01-07", Category: "SaaS"},
			{ID: "ex2", Description: "Train", Amount: 42.5, Currency: model.GBP, Date: "2025-01-14"},
			{ID: "ex3", Description: "Hosting", Amount: 20, Currency: model.USD, Date: "2025-01-15", Category: "saas"},
		},
	}
}

// today is Wednesday 2025-01-15.
var today = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) (*Tools, Session) {
	t.Helper()
	store, err := workspace.New(fixtureWorkspace())
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return New(store), Session{Role: model.RoleOwner, Persona: model.PersonaPA, Currency: model.GBP, Clock: model.FixedClock(today)}
}

func wantKind(t *testing.T, err *model.Error, kind model.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if err.Kind != kind {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		amount   float64
		currency model.Currency
		want     string
	}{
		{1440, model.GBP, "£1,440.00"},
		{1234567.891, model.EUR, "€1,234,567.89"},
		{0, model.USD, "$0.00"},
		{-5, model.USD, "-$5.00"},
	}
	for _, tc := range cases {
		if got := FormatMoney(tc.amount, tc.currency); got != tc.want {
			t.Errorf("FormatMoney(%v, %s) = %q, want %q", tc.amount, tc.currency, got, tc.want)
		}
	}
	if got := Round2(0.125); got != 0.13 {
		t.Fatalf("Round2(0.125) = %v, want 0.13", got)
	}
	if got := Round2(-0.125); got != -0.13 {
		t.Fatalf("Round2(-0.125) = %v, want -0.13", got)
	}
}

func TestCreateInvoice_TotalsAndNumbering(t *testing.T) {
	tools, sess := newFixture(t)
	items := []model.LineItem{
		{Description: "Design", Quantity: 3, UnitPrice: 333.33},
		{Description: "Hosting", Quantity: 1, UnitPrice: 19.99},
	}
	out, terr := tools.CreateInvoice(sess, CreateInvoiceArgs{ClientID: "c1", LineItems: items})
	if terr != nil {
		t.Fatalf("CreateInvoice: %v", terr)
	}
	inv := out.Result.(model.Invoice)

	sum := 0.0
	for _, li := range items {
		sum += li.Quantity * li.UnitPrice
	}
	if inv.VAT != Round2(sum*0.2) {
		t.Fatalf("vat = %v, want %v", inv.VAT, Round2(sum*0.2))
	}
	if inv.Total != Round2(sum+inv.VAT) {
		t.Fatalf("total = %v, want %v", inv.Total, Round2(sum+inv.VAT))
	}
	if inv.Number != "INV-2025-082" || inv.ID != "inv_2025_082" {
		t.Fatalf("unexpected numbering %s / %s", inv.Number, inv.ID)
	}
	if inv.Currency != model.GBP || inv.DueDays != 14 || inv.Status != model.InvoiceStatusDraft || inv.Date != "2025-01-15" {
		t.Fatalf("unexpected defaults: %+v", inv)
	}
	want := "Draft invoice INV-2025-082 for Acme Ltd: £1,019.98 + VAT = £1,223.98 (due in 14 days)"
	if out.Summary != want {
		t.Fatalf("summary = %q, want %q", out.Summary, want)
	}

	vat := 0.0
	out2, terr := tools.CreateInvoice(sess, CreateInvoiceArgs{
		ClientID: "c2", Currency: model.EUR, VATRate: &vat,
		LineItems: []model.LineItem{{Description: "Support", Quantity: 2, UnitPrice: 50}},
	})
	if terr != nil {
		t.Fatalf("second CreateInvoice: %v", terr)
	}
	inv2 := out2.Result.(model.Invoice)
	if inv2.Number != "INV-2025-083" {
		t.Fatalf("numbers must increase by one, got %s", inv2.Number)
	}
	if inv2.Total != 100 || inv2.VAT != 0 || inv2.Currency != model.EUR {
		t.Fatalf("unexpected second invoice: %+v", inv2)
	}
}

func TestCreateInvoice_RejectsBeforeMutating(t *testing.T) {
	tools, sess := newFixture(t)
	before := tools.Store().Invoices()
	items := []model.LineItem{{Description: "x", Quantity: 1, UnitPrice: 1}}

	viewer := sess
	viewer.Role = model.RoleViewer
	_, terr := tools.CreateInvoice(viewer, CreateInvoiceArgs{ClientID: "c1", LineItems: items})
	wantKind(t, terr, model.KindForbidden)

	_, terr = tools.CreateInvoice(sess, CreateInvoiceArgs{ClientID: "c404", LineItems: items})
	wantKind(t, terr, model.KindNotFound)

	bad := 1.5
	_, terr = tools.CreateInvoice(sess, CreateInvoiceArgs{ClientID: "c1", LineItems: items, VATRate: &bad})
	wantKind(t, terr, model.KindInvalidArgument)

	_, terr = tools.CreateInvoice(sess, CreateInvoiceArgs{ClientID: "c1"})
	wantKind(t, terr, model.KindInvalidArgument)

	if diff := cmp.Diff(before, tools.Store().Invoices()); diff != "" {
		t.Fatalf("invoices changed (-before +after):\n%s", diff)
	}
}

func TestChaseLatePayers_Boundaries(t *testing.T) {
	tools, sess := newFixture(t)

	out, terr := tools.ChaseLatePayers(sess, ChaseLatePayersArgs{Today: "2025-01-20"})
	if terr != nil {
		t.Fatalf("ChaseLatePayers: %v", terr)
	}
	res := out.Result.(map[string]interface{})
	reminders := res["reminders"].([]Reminder)
	if res["count_overdue"] != 1 || len(reminders) != 1 {
		t.Fatalf("expected one overdue invoice, got %+v", res)
	}
	r := reminders[0]
	if r.MessageSubject != "Overdue: INV-2025-081 (Acme Ltd)" || r.DueDate != "2025-01-15" || r.Amount != "£1,440.00" {
		t.Fatalf("unexpected reminder: %+v", r)
	}
	if !strings.HasPrefix(r.MessageBody, "Hi Acme Ltd,") || !strings.Contains(r.MessageBody, "was due on 2025-01-15") {
		t.Fatalf("unexpected body: %q", r.MessageBody)
	}

	out, terr = tools.ChaseLatePayers(sess, ChaseLatePayersArgs{Today: "2025-01-10"})
	if terr != nil {
		t.Fatalf("ChaseLatePayers: %v", terr)
	}
	if got := out.Result.(map[string]interface{})["count_overdue"]; got != 0 {
		t.Fatalf("nothing should be overdue on 2025-01-10, got %v", got)
	}

	member := sess
	member.Role = model.RoleMember
	_, terr = tools.ChaseLatePayers(member, ChaseLatePayersArgs{})
	wantKind(t, terr, model.KindForbidden)
}

func TestChaseLatePayers_PaidNeverOverdue(t *testing.T) {
	ws := fixtureWorkspace()
	ws.Invoices[0].Status = model.InvoiceStatusPaid
	store, err := workspace.New(ws)
	if err != nil {
		t.Fatal(err)
	}
	tools := New(store)
	out, terr := tools.ChaseLatePayers(Session{Role: model.RoleManager, Clock: model.FixedClock(today)}, ChaseLatePayersArgs{Today: "2030-01-01"})
	if terr != nil {
		t.Fatal(terr)
	}
	if got := out.Result.(map[string]interface{})["count_overdue"]; got != 0 {
		t.Fatalf("paid invoice reported overdue: %v", got)
	}
}

func TestFindClient_RelevanceBonus(t *testing.T) {
	tools, sess := newFixture(t)
	out, terr := tools.FindClient(sess, FindClientArgs{Query: "acme", TopK: 2})
	if terr != nil {
		t.Fatal(terr)
	}
	plain := out.Result.([]ClientMatch)
	if len(plain) != 2 || plain[0].ClientID != "c1" || plain[0].Bonus != 0 {
		t.Fatalf("unexpected plain ranking: %+v", plain)
	}

	out, terr = tools.FindClient(sess, FindClientArgs{Query: "acme", TopK: 5, UseRelevance: true})
	if terr != nil {
		t.Fatal(terr)
	}
	boosted := out.Result.([]ClientMatch)
	if boosted[0].ClientID != "c1" || boosted[0].Bonus != 15 || boosted[0].Score != plain[0].Score+15 {
		t.Fatalf("expected +15 for Acme, got %+v", boosted[0])
	}
	if len(boosted) != 3 {
		t.Fatalf("expected all three clients, got %d", len(boosted))
	}

	_, terr = tools.FindClient(sess, FindClientArgs{Query: "  "})
	wantKind(t, terr, model.KindInvalidArgument)
}

func TestResolveProjectAndSuggestInvoice(t *testing.T) {
	tools, sess := newFixture(t)
	out, terr := tools.ResolveProject(sess, ResolveProjectArgs{ClientName: "globex"})
	if terr != nil {
		t.Fatal(terr)
	}
	if got := out.Result.(map[string]interface{})["project_id"]; got != "p2" {
		t.Fatalf("expected p2, got %v", got)
	}
	_, terr = tools.ResolveProject(sess, ResolveProjectArgs{ClientName: "zzzzzzzz"})
	wantKind(t, terr, model.KindNotFound)

	out, terr = tools.SuggestInvoice(sess, SuggestInvoiceArgs{ClientID: "c3"})
	if terr != nil {
		t.Fatal(terr)
	}
	res := out.Result.(map[string]interface{})
	if res["currency"] != model.EUR || res["vat_rate"] != 0.19 || res["due_days"] != 14 {
		t.Fatalf("unexpected suggestion: %+v", res)
	}
	if n := len(tools.Store().Invoices()); n != 1 {
		t.Fatalf("suggest_invoice must not create invoices, have %d", n)
	}
}

func TestListTasks_Order(t *testing.T) {
	tools, sess := newFixture(t)
	out, terr := tools.ListTasks(sess, ListTasksArgs{ProjectID: "p1"})
	if terr != nil {
		t.Fatal(terr)
	}
	tasks := out.Result.([]model.Task)
	if len(tasks) != 2 || tasks[0].ID != "t1" || tasks[1].ID != "t2" {
		t.Fatalf("unexpected order: %+v", tasks)
	}
	out, terr = tools.ListTasks(sess, ListTasksArgs{ProjectID: "p1", Status: model.TaskDone})
	if terr != nil {
		t.Fatal(terr)
	}
	if got := out.Result.([]model.Task); len(got) != 0 {
		t.Fatalf("expected no done tasks, got %+v", got)
	}
	_, terr = tools.ListTasks(sess, ListTasksArgs{ProjectID: "p9"})
	wantKind(t, terr, model.KindNotFound)
}

func TestCreateTask_PersonaSummaries(t *testing.T) {
	tools, sess := newFixture(t)
	out, terr := tools.CreateTask(sess, CreateTaskArgs{ProjectID: "p1", Title: "Send proposal"})
	if terr != nil {
		t.Fatal(terr)
	}
	task := out.Result.(model.Task)
	if task.ID != "t4" || task.Status != model.TaskTodo {
		t.Fatalf("unexpected task: %+v", task)
	}
	if out.Summary != "Created task 'Send proposal' in Website." {
		t.Fatalf("PA summary = %q", out.Summary)
	}

	out, terr = tools.CreateTask(sess, CreateTaskArgs{ProjectID: "p1", Title: "Reconcile", Persona: model.PersonaAccountant})
	if terr != nil {
		t.Fatal(terr)
	}
	if out.Summary != "Task created: 'Reconcile' in Website." {
		t.Fatalf("Accountant summary = %q", out.Summary)
	}

	intern := sess
	intern.Persona = "Butler"
	out, terr = tools.CreateTask(intern, CreateTaskArgs{ProjectID: "p1", Title: "Tidy"})
	if terr != nil {
		t.Fatal(terr)
	}
	if out.Summary != "Created task 'Tidy' in Website." {
		t.Fatalf("unknown persona should fall back to PA, got %q", out.Summary)
	}

	_, terr = tools.CreateTask(sess, CreateTaskArgs{ProjectID: "p404", Title: "x"})
	wantKind(t, terr, model.KindNotFound)
	_, terr = tools.CreateTask(sess, CreateTaskArgs{ProjectID: "p1", Title: "x", DueDate: "soon"})
	wantKind(t, terr, model.KindInvalidArgument)

	viewer := sess
	viewer.Role = model.RoleViewer
	_, terr = tools.CreateTask(viewer, CreateTaskArgs{ProjectID: "p1", Title: "x"})
	wantKind(t, terr, model.KindForbidden)
}

func TestMoveTask(t *testing.T) {
	tools, sess := newFixture(t)
	before := tools.Store().Tasks()

	_, terr := tools.MoveTask(sess, MoveTaskArgs{TaskQueryOrID: "quarterly tax filing", NewStatus: "done"})
	wantKind(t, terr, model.KindNotFound)
	if diff := cmp.Diff(before, tools.Store().Tasks()); diff != "" {
		t.Fatalf("tasks changed after NotFound (-before +after):\n%s", diff)
	}

	_, terr = tools.MoveTask(sess, MoveTaskArgs{TaskQueryOrID: "t1", NewStatus: "blocked"})
	wantKind(t, terr, model.KindInvalidArgument)

	out, terr := tools.MoveTask(sess, MoveTaskArgs{TaskQueryOrID: "hire designer", NewStatus: "doing", ProjectID: "p1"})
	if terr != nil {
		t.Fatal(terr)
	}
	if out.Summary != "Moved 'Hire designer' from todo to doing." {
		t.Fatalf("summary = %q", out.Summary)
	}
	if tk, _ := tools.Store().Task("t1"); tk.Status != model.TaskDoing {
		t.Fatalf("t1 not moved: %+v", tk)
	}

	out, terr = tools.MoveTask(sess, MoveTaskArgs{TaskQueryOrID: "t3", NewStatus: "todo", Persona: model.PersonaIntern})
	if terr != nil {
		t.Fatal(terr)
	}
	if !strings.HasPrefix(out.Summary, "Zoom! Moved 'Collect receipts' from done -> todo.") {
		t.Fatalf("intern summary = %q", out.Summary)
	}
}

func TestRecordExpense(t *testing.T) {
	tools, sess := newFixture(t)
	_, terr := tools.RecordExpense(sess, RecordExpenseArgs{Amount: 0, Currency: model.GBP, Description: "Taxi"})
	wantKind(t, terr, model.KindInvalidArgument)
	_, terr = tools.RecordExpense(sess, RecordExpenseArgs{Amount: 5, Currency: "JPY", Description: "Taxi"})
	wantKind(t, terr, model.KindInvalidArgument)
	_, terr = tools.RecordExpense(sess, RecordExpenseArgs{Amount: 5, Currency: model.GBP, Description: "Taxi", ProjectID: "p404"})
	wantKind(t, terr, model.KindNotFound)

	member := sess
	member.Role = model.RoleMember
	_, terr = tools.RecordExpense(member, RecordExpenseArgs{Amount: 5, Currency: model.GBP, Description: "Taxi"})
	wantKind(t, terr, model.KindForbidden)
	if n := len(tools.Store().Expenses()); n != 3 {
		t.Fatalf("failed calls must not append, have %d expenses", n)
	}

	out, terr := tools.RecordExpense(sess, RecordExpenseArgs{Amount: 12.5, Currency: model.GBP, Description: "Taxi", Category: "Travel"})
	if terr != nil {
		t.Fatal(terr)
	}
	exp := out.Result.(model.Expense)
	if exp.ID != "ex4" || exp.Date != "2025-01-15" {
		t.Fatalf("unexpected expense: %+v", exp)
	}
	if out.Summary != `Recorded £12.50 for "Taxi".` {
		t.Fatalf("summary = %q", out.Summary)
	}
}

func TestRecordPayment_SettlesInvoice(t *testing.T) {
	tools, sess := newFixture(t)
	out, terr := tools.RecordPayment(sess, RecordPaymentArgs{InvoiceID: "inv_2025_081", Amount: 940})
	if terr != nil {
		t.Fatal(terr)
	}
	if got := out.Result.(map[string]interface{})["invoice_status"]; got != model.InvoiceStatusPaid {
		t.Fatalf("invoice should be paid, got %v", got)
	}
	_, terr = tools.RecordPayment(sess, RecordPaymentArgs{InvoiceID: "inv_x", Amount: 1})
	wantKind(t, terr, model.KindNotFound)
	_, terr = tools.RecordPayment(sess, RecordPaymentArgs{InvoiceID: "inv_2025_081", Amount: -1})
	wantKind(t, terr, model.KindInvalidArgument)
}

func TestWeeklySummary_DefaultWindow(t *testing.T) {
	tools, sess := newFixture(t)
	out, terr := tools.WeeklySummary(sess, WeeklySummaryArgs{})
	if terr != nil {
		t.Fatal(terr)
	}
	ws := out.Result.(WeeklySummary)
	if ws.StartDate != "2025-01-13" || ws.EndDate != "2025-01-19" {
		t.Fatalf("window = %s..%s", ws.StartDate, ws.EndDate)
	}
	gbp := ws.ByCurrency[model.GBP]
	if gbp == nil {
		t.Fatalf("missing GBP bucket: %+v", ws.ByCurrency)
	}
	want := CurrencySummary{
		ExpensesTotal:         42.5,
		ExpensesByCategory:    map[string]float64{"uncategorised": 42.5},
		PaymentsReceivedTotal: 500,
		Counts:                SummaryCounts{Expenses: 1, PaymentsReceived: 1},
	}
	if diff := cmp.Diff(want, *gbp); diff != "" {
		t.Fatalf("GBP summary (-want +got):\n%s", diff)
	}
	usd := ws.ByCurrency[model.USD]
	if usd == nil || usd.ExpensesByCategory["saas"] != 20 {
		t.Fatalf("unexpected USD bucket: %+v", usd)
	}
	if ws.Pretty[model.GBP].PaymentsReceived != "£500.00" {
		t.Fatalf("pretty = %+v", ws.Pretty[model.GBP])
	}
}

func TestWeeklySummary_ExplicitWindowAndOrphans(t *testing.T) {
	ws := fixtureWorkspace()
	ws.Payments = append(ws.Payments, model.Payment{ID: "pay2", InvoiceID: "inv_gone", Amount: 99, Date: "2025-01-02"})
	tools := New(workspace.NewUnchecked(ws))
	sess := Session{Clock: model.FixedClock(today)}

	out, terr := tools.WeeklySummary(sess, WeeklySummaryArgs{StartDate: "2025-01-01", EndDate: "2025-01-07"})
	if terr != nil {
		t.Fatal(terr)
	}
	sum := out.Result.(WeeklySummary)
	if sum.OrphanPayments != 1 {
		t.Fatalf("orphan payments = %d", sum.OrphanPayments)
	}
	gbp := sum.ByCurrency[model.GBP]
	if gbp.InvoicesIssuedTotal != 1440 || gbp.Counts.InvoicesIssued != 1 || gbp.ExpensesByCategory["saas"] != 18 {
		t.Fatalf("unexpected GBP bucket: %+v", gbp)
	}

	_, terr = tools.WeeklySummary(sess, WeeklySummaryArgs{StartDate: "2025-01-01"})
	wantKind(t, terr, model.KindInvalidArgument)
	_, terr = tools.WeeklySummary(sess, WeeklySummaryArgs{StartDate: "2025-01-09", EndDate: "2025-01-01"})
	wantKind(t, terr, model.KindInvalidArgument)
}

func TestAsToolError(t *testing.T) {
	if asToolError(nil) != nil {
		t.Fatal("nil in, nil out")
	}
	e := asToolError(errors.New("boom"))
	if e.Kind != model.KindInvalidArgument {
		t.Fatalf("unclassified errors become invalid arguments, got %v", e)
	}
}

func TestChaseLatePayers_ZeroTermSeedInvoice(t *testing.T) {
	seed := `{
  "users": [], "projects": [], "tasks": [],
  "clients": [{"id": "c1", "name": "Acme Ltd", "currency": "GBP", "default_vat": 0.2}],
  "invoices": [{"id": "inv_2025_001", "client_id": "c1", "number": "INV-2025-001", "date": "2025-01-10",
    "due_days": 0, "currency": "GBP", "status": "draft", "total": 120}]
}`
	ws, err := workspace.Decode([]byte(seed), workspace.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	store, err := workspace.New(ws)
	if err != nil {
		t.Fatal(err)
	}
	sess := Session{Role: model.RoleManager, Clock: model.FixedClock(time.Date(2025, 1, 12, 9, 0, 0, 0, time.UTC))}
	out, terr := New(store).ChaseLatePayers(sess, ChaseLatePayersArgs{})
	if terr != nil {
		t.Fatal(terr)
	}
	if got := out.Result.(map[string]interface{})["count_overdue"]; got != 1 {
		t.Fatalf("count_overdue = %v, want 1", got)
	}
}
