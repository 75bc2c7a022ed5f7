package tools

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"bizassist/internal/model"
	"bizassist/internal/permissions"
	"bizassist/internal/selectors"
)

const uncategorised = "uncategorised"

type RecordExpenseArgs struct {
	Amount      float64
	Currency    model.Currency
	Description string
	DateISO     string
	Category    string
	ProjectID   string
	ClientID    string
	Persona     model.Persona
}

func (t *Tools) RecordExpense(s Session, a RecordExpenseArgs) (Outcome, *model.Error) {
	if err := permissions.Require(s.Role, permissions.ActionRecordExpense); err != nil {
		return Outcome{}, asToolError(err)
	}
	if !(a.Amount > 0) {
		return Outcome{}, model.InvalidArgument("amount must be greater than 0")
	}
	if _, ok := model.ParseCurrency(string(a.Currency)); !ok {
		return Outcome{}, model.InvalidArgument("currency must be one of %s", joinCurrencies())
	}
	desc := strings.TrimSpace(a.Description)
	if desc == "" {
		return Outcome{}, model.InvalidArgument("description must be a non-empty string")
	}
	date := s.today()
	if a.DateISO != "" {
		d, err := model.ParseDate(a.DateISO)
		if err != nil {
			return Outcome{}, model.InvalidArgument("date_iso: %v", err)
		}
		date = d
	}
	if a.ProjectID != "" {
		if _, ok := t.store.Project(a.ProjectID); !ok {
			return Outcome{}, model.NotFound("project %q not found", a.ProjectID)
		}
	}
	if a.ClientID != "" {
		if _, ok := t.store.Client(a.ClientID); !ok {
			return Outcome{}, model.NotFound("client %q not found", a.ClientID)
		}
	}

	exp, err := t.store.CreateExpense(func(id string) (model.Expense, error) {
		return model.Expense{
			ID:          id,
			ProjectID:   a.ProjectID,
			ClientID:    a.ClientID,
			Description: desc,
			Amount:      Round2(a.Amount),
			Currency:    a.Currency,
			Date:        model.FormatDate(date),
			Category:    strings.TrimSpace(a.Category),
		}, nil
	})
	if err != nil {
		return Outcome{}, asToolError(err)
	}
	return Outcome{
		Result:  exp,
		Summary: toneFor(s.persona(a.Persona)).expenseRecorded(FormatMoney(exp.Amount, exp.Currency), exp.Description),
	}, nil
}

type RecordPaymentArgs struct {
	InvoiceID string
	Amount    float64
	DateISO   string
	Persona   model.Persona
}

// RecordPayment books money received against an invoice and marks the
// invoice paid once it is covered.
func (t *Tools) RecordPayment(s Session, a RecordPaymentArgs) (Outcome, *model.Error) {
	if err := permissions.Require(s.Role, permissions.ActionRecordPayment); err != nil {
		return Outcome{}, asToolError(err)
	}
	if !(a.Amount > 0) {
		return Outcome{}, model.InvalidArgument("amount must be greater than 0")
	}
	inv, ok := t.store.Invoice(a.InvoiceID)
	if !ok {
		return Outcome{}, model.NotFound("invoice %q not found", a.InvoiceID)
	}
	date := s.today()
	if a.DateISO != "" {
		d, err := model.ParseDate(a.DateISO)
		if err != nil {
			return Outcome{}, model.InvalidArgument("date_iso: %v", err)
		}
		date = d
	}

	pay, updated, err := t.store.CreatePayment(func(id string) (model.Payment, error) {
		return model.Payment{ID: id, InvoiceID: inv.ID, Amount: Round2(a.Amount), Date: model.FormatDate(date)}, nil
	})
	if err != nil {
		return Outcome{}, asToolError(err)
	}
	return Outcome{
		Result: map[string]interface{}{
			"payment":        pay,
			"invoice_status": updated.Status,
		},
		Summary: toneFor(s.persona(a.Persona)).paymentRecorded(FormatMoney(pay.Amount, updated.Currency), updated.Number, updated.Paid()),
	}, nil
}

type WeeklySummaryArgs struct {
	StartDate string
	EndDate   string
}

type SummaryCounts struct {
	Expenses         int `json:"expenses"`
	InvoicesIssued   int `json:"invoices_issued"`
	PaymentsReceived int `json:"payments_received"`
}

// CurrencySummary aggregates one currency's activity in the window.
type CurrencySummary struct {
	ExpensesTotal         float64            `json:"expenses_total"`
	ExpensesByCategory    map[string]float64 `json:"expenses_by_category"`
	InvoicesIssuedTotal   float64            `json:"invoices_issued_total"`
	PaymentsReceivedTotal float64            `json:"payments_received_total"`
	Counts                SummaryCounts      `json:"counts"`
}

type PrettyTotals struct {
	Expenses           string            `json:"expenses"`
	ExpensesByCategory map[string]string `json:"expenses_by_category"`
	InvoicesIssued     string            `json:"invoices_issued"`
	PaymentsReceived   string            `json:"payments_received"`
}

type WeeklySummary struct {
	StartDate      string                              `json:"start_date"`
	EndDate        string                              `json:"end_date"`
	ByCurrency     map[model.Currency]*CurrencySummary `json:"by_currency"`
	Pretty         map[model.Currency]PrettyTotals     `json:"pretty"`
	OrphanPayments int                                 `json:"orphan_payments"`
}

// WeeklySummary aggregates expenses, invoices and payments per currency over
// an inclusive date window, by default the ISO week containing today.
func (t *Tools) WeeklySummary(s Session, a WeeklySummaryArgs) (Outcome, *model.Error) {
	start, end, terr := summaryWindow(s.today(), a.StartDate, a.EndDate)
	if terr != nil {
		return Outcome{}, terr
	}

	out := WeeklySummary{
		StartDate:  model.FormatDate(start),
		EndDate:    model.FormatDate(end),
		ByCurrency: map[model.Currency]*CurrencySummary{},
		Pretty:     map[model.Currency]PrettyTotals{},
	}
	bucket := func(c model.Currency) *CurrencySummary {
		if c == "" {
			c = model.DefaultCurrency
		}
		cs, ok := out.ByCurrency[c]
		if !ok {
			cs = &CurrencySummary{ExpensesByCategory: map[string]float64{}}
			out.ByCurrency[c] = cs
		}
		return cs
	}

	for _, e := range t.store.Expenses() {
		if !selectors.InWindow(e.Date, start, end) {
			continue
		}
		cs := bucket(e.Currency)
		cat := strings.ToLower(strings.TrimSpace(e.Category))
		if cat == "" {
			cat = uncategorised
		}
		cs.ExpensesTotal += e.Amount
		cs.ExpensesByCategory[cat] += e.Amount
		cs.Counts.Expenses++
	}

	invoices := t.store.Invoices()
	currencyOf := make(map[string]model.Currency, len(invoices))
	for _, inv := range invoices {
		currencyOf[inv.ID] = inv.Currency
		if !selectors.InWindow(inv.Date, start, end) {
			continue
		}
		cs := bucket(inv.Currency)
		cs.InvoicesIssuedTotal += inv.Total
		cs.Counts.InvoicesIssued++
	}

	for _, p := range t.store.Payments() {
		if !selectors.InWindow(p.Date, start, end) {
			continue
		}
		c, ok := currencyOf[p.InvoiceID]
		if !ok {
			out.OrphanPayments++
			continue
		}
		cs := bucket(c)
		cs.PaymentsReceivedTotal += p.Amount
		cs.Counts.PaymentsReceived++
	}

	for c, cs := range out.ByCurrency {
		cs.ExpensesTotal = Round2(cs.ExpensesTotal)
		cs.InvoicesIssuedTotal = Round2(cs.InvoicesIssuedTotal)
		cs.PaymentsReceivedTotal = Round2(cs.PaymentsReceivedTotal)
		pretty := PrettyTotals{
			Expenses:           FormatMoney(cs.ExpensesTotal, c),
			ExpensesByCategory: make(map[string]string, len(cs.ExpensesByCategory)),
			InvoicesIssued:     FormatMoney(cs.InvoicesIssuedTotal, c),
			PaymentsReceived:   FormatMoney(cs.PaymentsReceivedTotal, c),
		}
		for cat, v := range cs.ExpensesByCategory {
			cs.ExpensesByCategory[cat] = Round2(v)
			pretty.ExpensesByCategory[cat] = FormatMoney(v, c)
		}
		out.Pretty[c] = pretty
	}

	return Outcome{Result: out, Summary: summaryLine(out)}, nil
}

func summaryWindow(today time.Time, startISO, endISO string) (time.Time, time.Time, *model.Error) {
	switch {
	case startISO == "" && endISO == "":
		start, end := selectors.WeekBounds(today)
		return start, end, nil
	case startISO == "" || endISO == "":
		return time.Time{}, time.Time{}, model.InvalidArgument("start_date and end_date must be given together")
	}
	start, err := model.ParseDate(startISO)
	if err != nil {
		return time.Time{}, time.Time{}, model.InvalidArgument("start_date: %v", err)
	}
	end, err := model.ParseDate(endISO)
	if err != nil {
		return time.Time{}, time.Time{}, model.InvalidArgument("end_date: %v", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, model.InvalidArgument("start_date %s is after end_date %s", startISO, endISO)
	}
	return start, end, nil
}

func summaryLine(ws WeeklySummary) string {
	if len(ws.ByCurrency) == 0 {
		prefix := fmt.Sprintf("No activity between %s and %s.", ws.StartDate, ws.EndDate)
		if ws.OrphanPayments > 0 {
			return fmt.Sprintf("%s %d payment(s) reference missing invoices.", prefix, ws.OrphanPayments)
		}
		return prefix
	}
	currencies := make([]string, 0, len(ws.Pretty))
	for c := range ws.Pretty {
		currencies = append(currencies, string(c))
	}
	sort.Strings(currencies)
	parts := make([]string, 0, len(currencies))
	for _, c := range currencies {
		p := ws.Pretty[model.Currency(c)]
		parts = append(parts, fmt.Sprintf("%s: spent %s, invoiced %s, received %s", c, p.Expenses, p.InvoicesIssued, p.PaymentsReceived))
	}
	line := fmt.Sprintf("%s to %s. %s.", ws.StartDate, ws.EndDate, strings.Join(parts, "; "))
	if ws.OrphanPayments > 0 {
		line += fmt.Sprintf(" %d payment(s) reference missing invoices.", ws.OrphanPayments)
	}
	return line
}
