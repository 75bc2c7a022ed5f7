package selectors

import (
	"sort"
	"time"

	"bizassist/internal/model"
)

// noDueDate sorts undated tasks after every dated one.
const noDueDate = "9999-12-31"

// RecentInvoiceWindow bounds how old an invoice may be to count as recent.
const RecentInvoiceWindow = 60 * 24 * time.Hour

// ScoredClient pairs a client with its similarity to a query.
type ScoredClient struct {
	Client model.Client `json:"client"`
	Score  int          `json:"score"`
}

// ClientCandidates ranks clients by name similarity to query, best first,
// keeping at most limit entries. Equal scores keep workspace order.
func ClientCandidates(clients []model.Client, query string, limit int) []ScoredClient {
	out := make([]ScoredClient, 0, len(clients))
	for _, c := range clients {
		out = append(out, ScoredClient{Client: c, Score: Score(query, c.Name)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ProjectsForClient returns the client's projects in workspace order.
func ProjectsForClient(projects []model.Project, clientID string) []model.Project {
	var out []model.Project
	for _, p := range projects {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	return out
}

// HasActiveProject reports whether the client has a project with status active.
func HasActiveProject(projects []model.Project, clientID string) bool {
	for _, p := range projects {
		if p.ClientID == clientID && p.Active() {
			return true
		}
	}
	return false
}

// HasRecentInvoice reports whether the client has an invoice dated no more
// than 60 days before today.
func HasRecentInvoice(invoices []model.Invoice, clientID string, today time.Time) bool {
	cutoff := model.Day(today).Add(-RecentInvoiceWindow)
	for _, inv := range invoices {
		if inv.ClientID != clientID {
			continue
		}
		d, err := model.ParseDate(inv.Date)
		if err != nil {
			continue
		}
		if !d.Before(cutoff) {
			return true
		}
	}
	return false
}

// IsOverdue reports date + due_days < today for an unpaid invoice.
func IsOverdue(inv model.Invoice, today time.Time) bool {
	if inv.Paid() {
		return false
	}
	due, err := inv.DueDate()
	if err != nil {
		return false
	}
	return due.Before(model.Day(today))
}

// OverdueInvoices filters invoices to the overdue ones, in workspace order.
func OverdueInvoices(invoices []model.Invoice, today time.Time) []model.Invoice {
	var out []model.Invoice
	for _, inv := range invoices {
		if IsOverdue(inv, today) {
			out = append(out, inv)
		}
	}
	return out
}

// TasksForProject returns the project's tasks, optionally filtered by status,
// ordered by due date (undated last) then title.
func TasksForProject(tasks []model.Task, projectID string, status model.TaskStatus) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.ProjectID != projectID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := dueKey(out[i]), dueKey(out[j])
		if di != dj {
			return di < dj
		}
		return out[i].Title < out[j].Title
	})
	return out
}

func dueKey(t model.Task) string {
	if t.DueDate == "" {
		return noDueDate
	}
	return t.DueDate
}

// ResolveTaskByTitle returns the task whose title best matches query, limited
// to projectID when set. Matches scoring below minScore are rejected.
func ResolveTaskByTitle(tasks []model.Task, query, projectID string, minScore int) (model.Task, int, bool) {
	var (
		best      model.Task
		bestScore = -1
	)
	for _, t := range tasks {
		if projectID != "" && t.ProjectID != projectID {
			continue
		}
		if s := Score(query, t.Title); s > bestScore {
			best, bestScore = t, s
		}
	}
	if bestScore < minScore || bestScore < 0 {
		return model.Task{}, bestScore, false
	}
	return best, bestScore, true
}

// WeekBounds returns Monday and Sunday of the ISO week containing day.
func WeekBounds(day time.Time) (time.Time, time.Time) {
	d := model.Day(day)
	offset := (int(d.Weekday()) + 6) % 7
	monday := d.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}

// InWindow reports start <= date <= end for an ISO date string.
func InWindow(date string, start, end time.Time) bool {
	d, err := model.ParseDate(date)
	if err != nil {
		return false
	}
	return !d.Before(start) && !d.After(end)
}
