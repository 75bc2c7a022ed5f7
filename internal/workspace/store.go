package workspace

import (
	"fmt"
	"sync"

	"bizassist/internal/model"
)

// DefaultInvoiceFallbackSequence is the first invoice sequence used when the
// workspace has no numbered invoices yet.
const DefaultInvoiceFallbackSequence = 81

// Store owns one session's workspace. Readers get copies; writers go through
// the Create/Update methods, which run under the write lock so id allocation
// and append happen atomically.
type Store struct {
	mu   sync.RWMutex
	data model.Workspace

	invoiceFallback int
}

type Option func(*Store)

// WithInvoiceFallbackSequence overrides the first invoice sequence.
func WithInvoiceFallbackSequence(seq int) Option {
	return func(s *Store) {
		if seq > 0 {
			s.invoiceFallback = seq
		}
	}
}

type options struct {
	skipChecks bool
}

// New validates ws and takes ownership of a deep copy of it.
func New(ws model.Workspace, opts ...Option) (*Store, error) {
	return newStore(ws, options{}, opts...)
}

// NewUnchecked skips id and foreign-key validation, for inspecting
// inconsistent seeds.
func NewUnchecked(ws model.Workspace, opts ...Option) *Store {
	s, _ := newStore(ws, options{skipChecks: true}, opts...)
	return s
}

func newStore(ws model.Workspace, o options, opts ...Option) (*Store, error) {
	if !o.skipChecks {
		if err := validateUnique(ws); err != nil {
			return nil, err
		}
		if err := validateReferences(ws); err != nil {
			return nil, err
		}
		if err := validateClients(ws.Clients); err != nil {
			return nil, err
		}
	}
	s := &Store{
		data:            clone(ws),
		invoiceFallback: DefaultInvoiceFallbackSequence,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Snapshot returns a deep copy of the whole workspace.
func (s *Store) Snapshot() model.Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.data)
}

func (s *Store) Users() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.User(nil), s.data.Users...)
}

func (s *Store) User(id string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.data.Users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}

func (s *Store) Clients() []model.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Client(nil), s.data.Clients...)
}

func (s *Store) Client(id string) (model.Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.data.Clients {
		if c.ID == id {
			return c, true
		}
	}
	return model.Client{}, false
}

func (s *Store) Projects() []model.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Project(nil), s.data.Projects...)
}

func (s *Store) Project(id string) (model.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.data.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return model.Project{}, false
}

func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Task(nil), s.data.Tasks...)
}

func (s *Store) Task(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.data.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

func (s *Store) Invoices() []model.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Invoice, len(s.data.Invoices))
	for i, inv := range s.data.Invoices {
		out[i] = cloneInvoice(inv)
	}
	return out
}

func (s *Store) Invoice(id string) (model.Invoice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.data.Invoices {
		if inv.ID == id {
			return cloneInvoice(inv), true
		}
	}
	return model.Invoice{}, false
}

func (s *Store) Payments() []model.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Payment(nil), s.data.Payments...)
}

func (s *Store) Expenses() []model.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Expense(nil), s.data.Expenses...)
}

// CreateInvoice allocates the next invoice sequence, lets build fill in the
// record, and appends it. Nothing is stored when build fails.
func (s *Store) CreateInvoice(build func(seq int) (model.Invoice, error)) (model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	numbers := make([]string, 0, len(s.data.Invoices))
	for _, inv := range s.data.Invoices {
		numbers = append(numbers, inv.Number)
	}
	inv, err := build(NextInvoiceSequence(numbers, s.invoiceFallback))
	if err != nil {
		return model.Invoice{}, err
	}
	for _, existing := range s.data.Invoices {
		if existing.ID == inv.ID || existing.Number == inv.Number {
			return model.Invoice{}, model.InvalidArgument("invoice %s already exists", inv.Number)
		}
	}
	s.data.Invoices = append(s.data.Invoices, cloneInvoice(inv))
	return cloneInvoice(inv), nil
}

// CreateTask allocates the next t<n> id and appends the built task.
func (s *Store) CreateTask(build func(id string) (model.Task, error)) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.data.Tasks))
	for _, t := range s.data.Tasks {
		ids = append(ids, t.ID)
	}
	task, err := build(NextID("t", ids))
	if err != nil {
		return model.Task{}, err
	}
	s.data.Tasks = append(s.data.Tasks, task)
	return task, nil
}

// UpdateTask applies mutate to a copy of the task and stores it only when
// mutate succeeds. It returns the task before and after the change.
func (s *Store) UpdateTask(id string, mutate func(*model.Task) error) (model.Task, model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.data.Tasks {
		if t.ID != id {
			continue
		}
		updated := t
		if err := mutate(&updated); err != nil {
			return model.Task{}, model.Task{}, err
		}
		s.data.Tasks[i] = updated
		return t, updated, nil
	}
	return model.Task{}, model.Task{}, model.NotFound("task %q not found", id)
}

// CreateExpense allocates the next ex<n> id and appends the built expense.
func (s *Store) CreateExpense(build func(id string) (model.Expense, error)) (model.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.data.Expenses))
	for _, e := range s.data.Expenses {
		ids = append(ids, e.ID)
	}
	exp, err := build(NextID("ex", ids))
	if err != nil {
		return model.Expense{}, err
	}
	s.data.Expenses = append(s.data.Expenses, exp)
	return exp, nil
}

// CreatePayment allocates the next pay<n> id, appends the payment and marks
// the invoice paid once its payments cover the total.
func (s *Store) CreatePayment(build func(id string) (model.Payment, error)) (model.Payment, model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.data.Payments))
	for _, p := range s.data.Payments {
		ids = append(ids, p.ID)
	}
	pay, err := build(NextID("pay", ids))
	if err != nil {
		return model.Payment{}, model.Invoice{}, err
	}
	idx := -1
	for i, inv := range s.data.Invoices {
		if inv.ID == pay.InvoiceID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Payment{}, model.Invoice{}, model.NotFound("invoice %q not found", pay.InvoiceID)
	}

	s.data.Payments = append(s.data.Payments, pay)
	paid := 0.0
	for _, p := range s.data.Payments {
		if p.InvoiceID == pay.InvoiceID {
			paid += p.Amount
		}
	}
	if paid+0.005 >= s.data.Invoices[idx].Total {
		s.data.Invoices[idx].Status = model.InvoiceStatusPaid
	}
	return pay, cloneInvoice(s.data.Invoices[idx]), nil
}

func validateUnique(ws model.Workspace) error {
	check := func(kind string, ids []string) error {
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if id == "" {
				return model.InvalidArgument("%s with empty id", kind)
			}
			if _, dup := seen[id]; dup {
				return model.InvalidArgument("duplicate %s id %q", kind, id)
			}
			seen[id] = struct{}{}
		}
		return nil
	}
	var ids []string
	for _, u := range ws.Users {
		ids = append(ids, u.ID)
	}
	if err := check("user", ids); err != nil {
		return err
	}
	ids = ids[:0]
	for _, c := range ws.Clients {
		ids = append(ids, c.ID)
	}
	if err := check("client", ids); err != nil {
		return err
	}
	ids = ids[:0]
	for _, p := range ws.Projects {
		ids = append(ids, p.ID)
	}
	if err := check("project", ids); err != nil {
		return err
	}
	ids = ids[:0]
	for _, t := range ws.Tasks {
		ids = append(ids, t.ID)
	}
	if err := check("task", ids); err != nil {
		return err
	}
	ids = ids[:0]
	for _, inv := range ws.Invoices {
		ids = append(ids, inv.ID)
	}
	if err := check("invoice", ids); err != nil {
		return err
	}
	ids = ids[:0]
	for _, p := range ws.Payments {
		ids = append(ids, p.ID)
	}
	if err := check("payment", ids); err != nil {
		return err
	}
	ids = ids[:0]
	for _, e := range ws.Expenses {
		ids = append(ids, e.ID)
	}
	return check("expense", ids)
}

// validateClients checks the billing defaults create_invoice relies on.
func validateClients(clients []model.Client) error {
	for _, c := range clients {
		if cur, ok := model.ParseCurrency(string(c.Currency)); !ok || cur != c.Currency {
			return model.InvalidArgument("client %s: currency %q is not one of %v", c.ID, c.Currency, model.Currencies)
		}
		if c.DefaultVAT < 0 || c.DefaultVAT > 1 {
			return model.InvalidArgument("client %s: default_vat %v must be between 0 and 1", c.ID, c.DefaultVAT)
		}
	}
	return nil
}

func validateReferences(ws model.Workspace) error {
	users := index(ws.Users, func(u model.User) string { return u.ID })
	clients := index(ws.Clients, func(c model.Client) string { return c.ID })
	projects := index(ws.Projects, func(p model.Project) string { return p.ID })
	invoices := index(ws.Invoices, func(inv model.Invoice) string { return inv.ID })

	dangling := func(kind, id, field, ref string) error {
		return model.InvalidArgument("%s %s: %s %q does not exist", kind, id, field, ref)
	}
	for _, p := range ws.Projects {
		if _, ok := clients[p.ClientID]; !ok {
			return dangling("project", p.ID, "client_id", p.ClientID)
		}
	}
	for _, t := range ws.Tasks {
		if _, ok := projects[t.ProjectID]; !ok {
			return dangling("task", t.ID, "project_id", t.ProjectID)
		}
		if t.AssigneeUserID != "" {
			if _, ok := users[t.AssigneeUserID]; !ok {
				return dangling("task", t.ID, "assignee_user_id", t.AssigneeUserID)
			}
		}
	}
	for _, inv := range ws.Invoices {
		if _, ok := clients[inv.ClientID]; !ok {
			return dangling("invoice", inv.ID, "client_id", inv.ClientID)
		}
	}
	for _, p := range ws.Payments {
		if _, ok := invoices[p.InvoiceID]; !ok {
			return dangling("payment", p.ID, "invoice_id", p.InvoiceID)
		}
	}
	for _, e := range ws.Expenses {
		if e.ProjectID != "" {
			if _, ok := projects[e.ProjectID]; !ok {
				return dangling("expense", e.ID, "project_id", e.ProjectID)
			}
		}
		if e.ClientID != "" {
			if _, ok := clients[e.ClientID]; !ok {
				return dangling("expense", e.ID, "client_id", e.ClientID)
			}
		}
	}
	return nil
}

func index[T any](items []T, key func(T) string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[key(it)] = struct{}{}
	}
	return out
}

func clone(ws model.Workspace) model.Workspace {
	out := model.Workspace{
		Users:    append([]model.User{}, ws.Users...),
		Clients:  append([]model.Client{}, ws.Clients...),
		Projects: append([]model.Project{}, ws.Projects...),
		Tasks:    append([]model.Task{}, ws.Tasks...),
		Invoices: make([]model.Invoice, len(ws.Invoices)),
		Payments: append([]model.Payment{}, ws.Payments...),
		Expenses: append([]model.Expense{}, ws.Expenses...),
	}
	for i, inv := range ws.Invoices {
		out.Invoices[i] = cloneInvoice(inv)
	}
	return out
}

func cloneInvoice(inv model.Invoice) model.Invoice {
	inv.LineItems = append([]model.LineItem(nil), inv.LineItems...)
	return inv
}

// String summarises collection sizes for logs.
func (s *Store) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("workspace{users=%d clients=%d projects=%d tasks=%d invoices=%d payments=%d expenses=%d}",
		len(s.data.Users), len(s.data.Clients), len(s.data.Projects), len(s.data.Tasks),
		len(s.data.Invoices), len(s.data.Payments), len(s.data.Expenses))
}
