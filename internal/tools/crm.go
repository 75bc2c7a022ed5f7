package tools

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"bizassist/internal/model"
	"bizassist/internal/permissions"
	"bizassist/internal/selectors"
	"bizassist/internal/workspace"
)

const (
	defaultTopK = 5

	activeProjectBonus = 10
	recentInvoiceBonus = 5

	// resolveClientMinScore rejects client matches that are mostly noise.
	resolveClientMinScore = 50
)

type FindClientArgs struct {
	Query        string
	TopK         int
	UseRelevance bool
}

// ClientMatch is one ranked find_client hit.
type ClientMatch struct {
	ClientID string         `json:"client_id"`
	Name     string         `json:"name"`
	Currency model.Currency `json:"currency"`
	Score    int            `json:"score"`
	Bonus    int            `json:"bonus,omitempty"`
}

// FindClient ranks clients by name similarity, optionally boosted by
// activity. Ties keep the fuzzy order.
func (t *Tools) FindClient(s Session, a FindClientArgs) (Outcome, *model.Error) {
	if strings.TrimSpace(a.Query) == "" {
		return Outcome{}, model.InvalidArgument("query must be a non-empty string")
	}
	topK := a.TopK
	if topK == 0 {
		topK = defaultTopK
	}
	if topK < 1 {
		return Outcome{}, model.InvalidArgument("top_k must be at least 1")
	}

	ranked := selectors.ClientCandidates(t.store.Clients(), a.Query, -1)
	matches := make([]ClientMatch, 0, len(ranked))
	seen := make(map[string]struct{}, len(ranked))
	var projects []model.Project
	var invoices []model.Invoice
	if a.UseRelevance {
		projects = t.store.Projects()
		invoices = t.store.Invoices()
	}
	today := s.today()
	for _, sc := range ranked {
		if _, dup := seen[sc.Client.ID]; dup {
			continue
		}
		seen[sc.Client.ID] = struct{}{}
		m := ClientMatch{ClientID: sc.Client.ID, Name: sc.Client.Name, Currency: sc.Client.Currency, Score: sc.Score}
		if a.UseRelevance {
			if selectors.HasActiveProject(projects, sc.Client.ID) {
				m.Bonus += activeProjectBonus
			}
			if selectors.HasRecentInvoice(invoices, sc.Client.ID, today) {
				m.Bonus += recentInvoiceBonus
			}
			m.Score += m.Bonus
		}
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}

	summary := "No clients in the workspace."
	if len(matches) > 0 {
		summary = fmt.Sprintf("Best match: %s (score %d).", matches[0].Name, matches[0].Score)
	}
	return Outcome{Result: matches, Summary: summary}, nil
}

type ResolveProjectArgs struct {
	ClientName string
}

// ResolveProject finds the best-matching client and its first project,
// preferring an active one.
func (t *Tools) ResolveProject(_ Session, a ResolveProjectArgs) (Outcome, *model.Error) {
	if strings.TrimSpace(a.ClientName) == "" {
		return Outcome{}, model.InvalidArgument("client_name must be a non-empty string")
	}
	best := selectors.ClientCandidates(t.store.Clients(), a.ClientName, 1)
	if len(best) == 0 || best[0].Score < resolveClientMinScore {
		return Outcome{}, model.NotFound("no client matches %q", a.ClientName)
	}
	client := best[0].Client
	projects := selectors.ProjectsForClient(t.store.Projects(), client.ID)
	if len(projects) == 0 {
		return Outcome{}, model.NotFound("client %s has no projects", client.Name)
	}
	chosen := projects[0]
	for _, p := range projects {
		if p.Active() {
			chosen = p
			break
		}
	}
	return Outcome{
		Result: map[string]interface{}{
			"client_id":    client.ID,
			"client_name":  client.Name,
			"project_id":   chosen.ID,
			"project_name": chosen.Name,
			"score":        best[0].Score,
		},
		Summary: fmt.Sprintf("%s -> project %s (%s).", client.Name, projectLabel(chosen), chosen.ID),
	}, nil
}

type CreateInvoiceArgs struct {
	ClientID    string
	Currency    model.Currency
	VATRate     *float64
	LineItems   []model.LineItem
	DueDays     *int
	Notes       string
	InvoiceDate string
}

// CreateInvoice drafts an invoice for a client and appends it.
func (t *Tools) CreateInvoice(s Session, a CreateInvoiceArgs) (Outcome, *model.Error) {
	if err := permissions.Require(s.Role, permissions.ActionCreateInvoice); err != nil {
		return Outcome{}, asToolError(err)
	}
	client, ok := t.store.Client(a.ClientID)
	if !ok {
		return Outcome{}, model.NotFound("client %q not found", a.ClientID)
	}
	if len(a.LineItems) == 0 {
		return Outcome{}, model.InvalidArgument("line_items must contain at least one item")
	}
	for i, li := range a.LineItems {
		if li.Quantity < 0 || li.UnitPrice < 0 {
			return Outcome{}, model.InvalidArgument("line_items[%d]: qty and unit_price must not be negative", i)
		}
	}

	currency := a.Currency
	if currency == "" {
		currency = client.Currency
	}
	if currency == "" {
		currency = s.currency()
	}
	if _, ok := model.ParseCurrency(string(currency)); !ok {
		return Outcome{}, model.InvalidArgument("currency must be one of %s", joinCurrencies())
	}
	rate := client.DefaultVAT
	if a.VATRate != nil {
		rate = *a.VATRate
	}
	if rate < 0 || rate > 1 {
		return Outcome{}, model.InvalidArgument("vat_rate must be between 0 and 1")
	}
	dueDays := t.dueDays
	if a.DueDays != nil {
		dueDays = *a.DueDays
	}
	if dueDays < 0 {
		return Outcome{}, model.InvalidArgument("due_days must not be negative")
	}
	issued := s.today()
	if a.InvoiceDate != "" {
		d, err := model.ParseDate(a.InvoiceDate)
		if err != nil {
			return Outcome{}, model.InvalidArgument("invoice_date: %v", err)
		}
		issued = d
	}

	subtotal, vat, total := InvoiceTotals(a.LineItems, rate)
	inv, err := t.store.CreateInvoice(func(seq int) (model.Invoice, error) {
		return model.Invoice{
			ID:        workspace.InvoiceID(issued.Year(), seq),
			ClientID:  client.ID,
			Number:    workspace.InvoiceNumber(issued.Year(), seq),
			Date:      model.FormatDate(issued),
			DueDays:   dueDays,
			Currency:  currency,
			VATRate:   rate,
			LineItems: append([]model.LineItem(nil), a.LineItems...),
			Status:    model.InvoiceStatusDraft,
			Subtotal:  subtotal,
			VAT:       vat,
			Total:     total,
			Notes:     a.Notes,
		}, nil
	})
	if err != nil {
		return Outcome{}, asToolError(err)
	}
	summary := fmt.Sprintf("Draft invoice %s for %s: %s + VAT = %s (due in %d days)",
		inv.Number, client.Name, FormatMoney(inv.Subtotal, currency), FormatMoney(inv.Total, currency), inv.DueDays)
	return Outcome{Result: inv, Summary: summary}, nil
}

type SuggestInvoiceArgs struct {
	ClientID string
}

// SuggestInvoice proposes invoice defaults for a client without creating one.
func (t *Tools) SuggestInvoice(s Session, a SuggestInvoiceArgs) (Outcome, *model.Error) {
	client, ok := t.store.Client(a.ClientID)
	if !ok {
		return Outcome{}, model.NotFound("client %q not found", a.ClientID)
	}
	currency := client.Currency
	if currency == "" {
		currency = s.currency()
	}
	items := []model.LineItem{{Description: "Monthly retainer", Quantity: 1, UnitPrice: 1200}}
	_, _, total := InvoiceTotals(items, client.DefaultVAT)
	return Outcome{
		Result: map[string]interface{}{
			"client_id":  client.ID,
			"currency":   currency,
			"vat_rate":   client.DefaultVAT,
			"due_days":   t.dueDays,
			"line_items": items,
		},
		Summary: fmt.Sprintf("Suggested for %s: monthly retainer, %s incl. VAT, due in %d days.",
			client.Name, FormatMoney(total, currency), t.dueDays),
	}, nil
}

type ChaseLatePayersArgs struct {
	Today string
}

// Reminder is a drafted chaser for one overdue invoice.
type Reminder struct {
	ClientID       string `json:"client_id"`
	ClientName     string `json:"client_name"`
	InvoiceNumber  string `json:"invoice_number"`
	DueDate        string `json:"due_date"`
	Amount         string `json:"amount"`
	MessageSubject string `json:"message_subject"`
	MessageBody    string `json:"message_body"`
}

const reminderBody = `Hi %s,

This is a friendly reminder that invoice %s (%s) was due on %s.

Could you please arrange payment at your earliest convenience? Let me know if you need us to resend the invoice.

Best regards,
Accounts`

// ChaseLatePayers drafts reminders for every overdue invoice. It does not
// modify the workspace.
func (t *Tools) ChaseLatePayers(s Session, a ChaseLatePayersArgs) (Outcome, *model.Error) {
	if err := permissions.Require(s.Role, permissions.ActionSendReminder); err != nil {
		return Outcome{}, asToolError(err)
	}
	today := s.today()
	if a.Today != "" {
		d, err := model.ParseDate(a.Today)
		if err != nil {
			return Outcome{}, model.InvalidArgument("today: %v", err)
		}
		today = d
	}

	reminders := make([]Reminder, 0)
	for _, inv := range selectors.OverdueInvoices(t.store.Invoices(), today) {
		due, _ := inv.DueDate()
		name := clientName(t.store, inv.ClientID)
		amount := FormatMoney(inv.Total, inv.Currency)
		dueStr := model.FormatDate(due)
		reminders = append(reminders, Reminder{
			ClientID:       inv.ClientID,
			ClientName:     name,
			InvoiceNumber:  inv.Number,
			DueDate:        dueStr,
			Amount:         amount,
			MessageSubject: fmt.Sprintf("Overdue: %s (%s)", inv.Number, name),
			MessageBody:    fmt.Sprintf(reminderBody, name, inv.Number, amount, dueStr),
		})
	}

	summary := fmt.Sprintf("No overdue invoices as of %s.", model.FormatDate(today))
	if n := len(reminders); n > 0 {
		summary = fmt.Sprintf("%d overdue %s as of %s; drafted %d %s.",
			n, plural(n, "invoice", "invoices"), model.FormatDate(today), n, plural(n, "reminder", "reminders"))
	}
	return Outcome{
		Result:  map[string]interface{}{"count_overdue": len(reminders), "reminders": reminders},
		Summary: summary,
	}, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// asToolError keeps classified errors and treats anything else as a bad
// argument.
func asToolError(err error) *model.Error {
	if err == nil {
		return nil
	}
	var e *model.Error
	if errors.As(err, &e) {
		return e
	}
	return model.InvalidArgument("%s", err.Error())
}
