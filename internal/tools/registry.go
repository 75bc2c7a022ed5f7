package tools

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bizassist/internal/model"
)

// ToolName is the closed set of tools the assistant may call.
type ToolName string

const (
	ToolFindClient      ToolName = "find_client"
	ToolResolveProject  ToolName = "resolve_project"
	ToolCreateInvoice   ToolName = "create_invoice"
	ToolSuggestInvoice  ToolName = "suggest_invoice"
	ToolChaseLatePayers ToolName = "chase_late_payers"
	ToolListTasks       ToolName = "list_tasks"
	ToolCreateTask      ToolName = "create_task"
	ToolMoveTask        ToolName = "move_task"
	ToolRecordExpense   ToolName = "record_expense"
	ToolRecordPayment   ToolName = "record_payment"
	ToolWeeklySummary   ToolName = "weekly_summary"
)

var toolOrder = []ToolName{
	ToolFindClient,
	ToolResolveProject,
	ToolCreateInvoice,
	ToolSuggestInvoice,
	ToolChaseLatePayers,
	ToolListTasks,
	ToolCreateTask,
	ToolMoveTask,
	ToolRecordExpense,
	ToolRecordPayment,
	ToolWeeklySummary,
}

// Names lists every tool in advertisement order.
func Names() []ToolName {
	return append([]ToolName(nil), toolOrder...)
}

// Definition advertises one tool.
type Definition struct {
	Name        ToolName               `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
	ReadOnly    bool                   `json:"readOnly"`
}

func definitionFor(name ToolName) Definition {
	switch name {
	case ToolFindClient:
		return Definition{name, "Find best-matching clients for a free-text query.", findClientInputSchema(), true}
	case ToolResolveProject:
		return Definition{name, "Resolve a client name to the client's main project.", resolveProjectInputSchema(), true}
	case ToolCreateInvoice:
		return Definition{name, "Create a draft invoice for a client.", createInvoiceInputSchema(), false}
	case ToolSuggestInvoice:
		return Definition{name, "Suggest default invoice settings for a client.", suggestInvoiceInputSchema(), true}
	case ToolChaseLatePayers:
		return Definition{name, "Find overdue invoices and draft polite reminder messages.", chaseLatePayersInputSchema(), true}
	case ToolListTasks:
		return Definition{name, "List tasks for a project.", listTasksInputSchema(), true}
	case ToolCreateTask:
		return Definition{name, "Create a new task in a project.", createTaskInputSchema(), false}
	case ToolMoveTask:
		return Definition{name, "Move a task to a new status.", moveTaskInputSchema(), false}
	case ToolRecordExpense:
		return Definition{name, "Record an operational expense.", recordExpenseInputSchema(), false}
	case ToolRecordPayment:
		return Definition{name, "Record a payment received against an invoice.", recordPaymentInputSchema(), false}
	case ToolWeeklySummary:
		return Definition{name, "Summarise a week (expenses, invoices, payments).", weeklySummaryInputSchema(), true}
	}
	panic(fmt.Sprintf("tools: no definition for %q", name))
}

// Registry advertises the tool set and dispatches calls against it.
type Registry struct {
	tools  *Tools
	defs   []Definition
	logger *zap.Logger
}

func NewRegistry(t *Tools, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	defs := make([]Definition, 0, len(toolOrder))
	for _, name := range toolOrder {
		defs = append(defs, definitionFor(name))
	}
	return &Registry{tools: t, defs: defs, logger: logger}
}

// Tools returns the tool set behind the registry.
func (r *Registry) Tools() *Tools {
	return r.tools
}

// Definitions returns the tool advertisements in order.
func (r *Registry) Definitions() []Definition {
	return append([]Definition(nil), r.defs...)
}

// Specs returns the advertisements in chat-completions form.
func (r *Registry) Specs() []model.ToolSpec {
	out := make([]model.ToolSpec, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, model.ToolSpec{Name: string(d.Name), Description: d.Description, Parameters: d.InputSchema})
	}
	return out
}

// Lookup reports whether name is a registered tool.
func (r *Registry) Lookup(name string) (Definition, bool) {
	for _, d := range r.defs {
		if string(d.Name) == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Execute runs one call and never fails: every error, including an unknown
// tool name, becomes a failed result.
func (r *Registry) Execute(ctx context.Context, s Session, call model.ToolCall) model.ToolResult {
	started := time.Now()
	outcome, terr := r.invoke(ctx, s, call)
	result := model.ToolResult{Name: call.Name}
	if terr != nil {
		result.Error = terr.Error()
	} else {
		result.OK = true
		result.Output = outcome
	}
	fields := []zap.Field{
		zap.String("tool", call.Name),
		zap.Bool("ok", result.OK),
		zap.Duration("elapsed", time.Since(started)),
	}
	if terr != nil {
		fields = append(fields, zap.String("error_kind", string(terr.Kind)))
	}
	r.logger.Debug("tool executed", fields...)
	return result
}

// Invoke is Execute without the result envelope, for adapters that map
// errors themselves.
func (r *Registry) Invoke(ctx context.Context, s Session, call model.ToolCall) (Outcome, *model.Error) {
	return r.invoke(ctx, s, call)
}

func (r *Registry) invoke(ctx context.Context, s Session, call model.ToolCall) (outcome Outcome, terr *model.Error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, model.Cancelled(err)
	}
	if _, ok := r.Lookup(call.Name); !ok {
		return Outcome{}, model.UnknownTool(call.Name)
	}
	args := call.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", zap.String("tool", call.Name), zap.Any("panic", rec))
			outcome, terr = Outcome{}, model.InvalidArgument("%s failed: %v", call.Name, rec)
		}
	}()
	return r.dispatch(s, ToolName(call.Name), args)
}

func (r *Registry) dispatch(s Session, name ToolName, args map[string]interface{}) (Outcome, *model.Error) {
	t := r.tools
	switch name {
	case ToolFindClient:
		a, err := parseFindClientArgs(args)
		if err != nil {
			return Outcome{}, invalid(err)
		}
		return t.FindClient(s, a)
	case ToolResolveProject:
		a, err := parseResolveProjectArgs(args)
		if err != nil {
			return Outcome{}, invalid(err)
		}
		return t.ResolveProject(s, a)
	case ToolCreateInvoice:
		a, err := parseCreateInvoiceArgs(args)
		if err != nil {
			return Outcome{}, invalid(err)
		}
		return t.CreateInvoice(s, a)
	case ToolSuggestInvoice:
		a, err := parseSuggestInvoiceArgs(args)
		if err != nil {
			return Outcome{}, invalid(err)
		}
		return t.SuggestInvoice(s, a)
	case ToolChaseLatePayers:
		a, err := parseChaseLatePayersArgs(args)
		if err != nil {
			return Outcome{}, invalid(err)
		}
		return t.ChaseLatePayers(s, a)
	case ToolListTasks:
		a, err := parseListTasksArgs(args)
		if err != nil {
			return Outcome{}, invalid(err)
		}
		return t.ListTasks(s, a)
	case ToolCreateTask:
		a, err := parseCreateTaskArgs(args)
		if err != nil {
			return Outcome{}, invalid(err)
		}
		return t.CreateTask(s, a)
	case ToolMoveTask:
		a, err := parseMoveTaskArgs(args)
		if err != nil {
			return Outcome{}, invalid(err)
		}
		return t.MoveTask(s, a)
	case ToolRecordExpense:
		a, err := parseRecordExpenseArgs(args)
		if err != nil {
			return Outcome{}, invalid(err)
		}
		return t.RecordExpense(s, a)
	case ToolRecordPayment:
		a, err := parseRecordPaymentArgs(args)
		if err != nil {
			return Outcome{}, invalid(err)
		}
		return t.RecordPayment(s, a)
	case ToolWeeklySummary:
		a, err := parseWeeklySummaryArgs(args)
		if err != nil {
			return Outcome{}, invalid(err)
		}
		return t.WeeklySummary(s, a)
	}
	return Outcome{}, model.UnknownTool(string(name))
}

func parseFindClientArgs(args map[string]interface{}) (FindClientArgs, error) {
	if err := assertNoUnknownArguments(args, allowed("query", "top_k", "use_relevance")); err != nil {
		return FindClientArgs{}, err
	}
	var a FindClientArgs
	var err error
	if a.Query, err = parseRequiredString(args, "query"); err != nil {
		return a, err
	}
	topK, present, err := parseOptionalIntegerWithPresence(args, "top_k")
	if err != nil {
		return a, err
	}
	a.TopK = defaultTopK
	if present {
		if topK < 1 {
			return a, fmt.Errorf("top_k must be at least 1")
		}
		a.TopK = topK
	}
	a.UseRelevance, err = parseOptionalBool(args, "use_relevance", false)
	return a, err
}

func parseResolveProjectArgs(args map[string]interface{}) (ResolveProjectArgs, error) {
	if err := assertNoUnknownArguments(args, allowed("client_name")); err != nil {
		return ResolveProjectArgs{}, err
	}
	name, err := parseRequiredString(args, "client_name")
	return ResolveProjectArgs{ClientName: name}, err
}

func parseCreateInvoiceArgs(args map[string]interface{}) (CreateInvoiceArgs, error) {
	if err := assertNoUnknownArguments(args, allowed("client_id", "currency", "vat_rate", "line_items", "due_days", "notes", "invoice_date")); err != nil {
		return CreateInvoiceArgs{}, err
	}
	var a CreateInvoiceArgs
	var err error
	if a.ClientID, err = parseRequiredString(args, "client_id"); err != nil {
		return a, err
	}
	if a.Currency, err = parseOptionalCurrency(args, "currency"); err != nil {
		return a, err
	}
	rate, present, err := parseOptionalNumberWithPresence(args, "vat_rate")
	if err != nil {
		return a, err
	}
	if present {
		a.VATRate = &rate
	}
	if a.LineItems, err = parseLineItems(args, "line_items"); err != nil {
		return a, err
	}
	days, present, err := parseOptionalIntegerWithPresence(args, "due_days")
	if err != nil {
		return a, err
	}
	if present {
		a.DueDays = &days
	}
	if a.Notes, err = parseOptionalString(args, "notes"); err != nil {
		return a, err
	}
	a.InvoiceDate, err = parseOptionalDate(args, "invoice_date")
	return a, err
}

func parseSuggestInvoiceArgs(args map[string]interface{}) (SuggestInvoiceArgs, error) {
	if err := assertNoUnknownArguments(args, allowed("client_id")); err != nil {
		return SuggestInvoiceArgs{}, err
	}
	id, err := parseRequiredString(args, "client_id")
	return SuggestInvoiceArgs{ClientID: id}, err
}

func parseChaseLatePayersArgs(args map[string]interface{}) (ChaseLatePayersArgs, error) {
	if err := assertNoUnknownArguments(args, allowed("today")); err != nil {
		return ChaseLatePayersArgs{}, err
	}
	today, err := parseOptionalDate(args, "today")
	return ChaseLatePayersArgs{Today: today}, err
}

func parseListTasksArgs(args map[string]interface{}) (ListTasksArgs, error) {
	if err := assertNoUnknownArguments(args, allowed("project_id", "status")); err != nil {
		return ListTasksArgs{}, err
	}
	var a ListTasksArgs
	var err error
	if a.ProjectID, err = parseRequiredString(args, "project_id"); err != nil {
		return a, err
	}
	raw, err := parseOptionalString(args, "status")
	if err != nil || raw == "" {
		return a, err
	}
	status, ok := model.ParseTaskStatus(raw)
	if !ok {
		return a, fmt.Errorf("status must be one of todo, doing, done")
	}
	a.Status = status
	return a, nil
}

func parseCreateTaskArgs(args map[string]interface{}) (CreateTaskArgs, error) {
	if err := assertNoUnknownArguments(args, allowed("project_id", "title", "assignee_user_id", "due_date", "persona")); err != nil {
		return CreateTaskArgs{}, err
	}
	var a CreateTaskArgs
	var err error
	if a.ProjectID, err = parseRequiredString(args, "project_id"); err != nil {
		return a, err
	}
	if a.Title, err = parseRequiredString(args, "title"); err != nil {
		return a, err
	}
	if a.AssigneeUserID, err = parseOptionalString(args, "assignee_user_id"); err != nil {
		return a, err
	}
	if a.DueDate, err = parseOptionalDate(args, "due_date"); err != nil {
		return a, err
	}
	a.Persona, err = parseOptionalPersona(args, "persona")
	return a, err
}

func parseMoveTaskArgs(args map[string]interface{}) (MoveTaskArgs, error) {
	if err := assertNoUnknownArguments(args, allowed("task_query_or_id", "new_status", "project_id", "persona")); err != nil {
		return MoveTaskArgs{}, err
	}
	var a MoveTaskArgs
	var err error
	if a.TaskQueryOrID, err = parseRequiredString(args, "task_query_or_id"); err != nil {
		return a, err
	}
	if a.NewStatus, err = parseRequiredString(args, "new_status"); err != nil {
		return a, err
	}
	if a.ProjectID, err = parseOptionalString(args, "project_id"); err != nil {
		return a, err
	}
	a.Persona, err = parseOptionalPersona(args, "persona")
	return a, err
}

func parseRecordExpenseArgs(args map[string]interface{}) (RecordExpenseArgs, error) {
	if err := assertNoUnknownArguments(args, allowed("amount", "currency", "description", "date_iso", "category", "project_id", "client_id", "persona")); err != nil {
		return RecordExpenseArgs{}, err
	}
	var a RecordExpenseArgs
	var err error
	if a.Amount, err = parseRequiredNumber(args, "amount"); err != nil {
		return a, err
	}
	if _, err = parseRequiredString(args, "currency"); err != nil {
		return a, err
	}
	if a.Currency, err = parseOptionalCurrency(args, "currency"); err != nil {
		return a, err
	}
	if a.Description, err = parseRequiredString(args, "description"); err != nil {
		return a, err
	}
	if a.DateISO, err = parseOptionalDate(args, "date_iso"); err != nil {
		return a, err
	}
	if a.Category, err = parseOptionalString(args, "category"); err != nil {
		return a, err
	}
	if a.ProjectID, err = parseOptionalString(args, "project_id"); err != nil {
		return a, err
	}
	if a.ClientID, err = parseOptionalString(args, "client_id"); err != nil {
		return a, err
	}
	a.Persona, err = parseOptionalPersona(args, "persona")
	return a, err
}

func parseRecordPaymentArgs(args map[string]interface{}) (RecordPaymentArgs, error) {
	if err := assertNoUnknownArguments(args, allowed("invoice_id", "amount", "date_iso", "persona")); err != nil {
		return RecordPaymentArgs{}, err
	}
	var a RecordPaymentArgs
	var err error
	if a.InvoiceID, err = parseRequiredString(args, "invoice_id"); err != nil {
		return a, err
	}
	if a.Amount, err = parseRequiredNumber(args, "amount"); err != nil {
		return a, err
	}
	if a.DateISO, err = parseOptionalDate(args, "date_iso"); err != nil {
		return a, err
	}
	a.Persona, err = parseOptionalPersona(args, "persona")
	return a, err
}

func parseWeeklySummaryArgs(args map[string]interface{}) (WeeklySummaryArgs, error) {
	if err := assertNoUnknownArguments(args, allowed("start_date", "end_date")); err != nil {
		return WeeklySummaryArgs{}, err
	}
	var a WeeklySummaryArgs
	var err error
	if a.StartDate, err = parseOptionalDate(args, "start_date"); err != nil {
		return a, err
	}
	a.EndDate, err = parseOptionalDate(args, "end_date")
	return a, err
}
