package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"bizassist/internal/model"
	"bizassist/internal/tools"
	"bizassist/internal/workspace"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

func newRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	store, err := workspace.New(model.Workspace{
		Users:    []model.User{{ID: "u1", Name: "Olivia", Role: model.RoleOwner}},
		Clients:  []model.Client{{ID: "c1", Name: "Acme Ltd", Currency: model.GBP, DefaultVAT: 0.2}},
		Projects: []model.Project{{ID: "p1", ClientID: "c1", Name: "Website", Status: "active"}},
		Tasks:    []model.Task{{ID: "t1", ProjectID: "p1", Title: "Hire designer", Status: model.TaskTodo}},
		Invoices: []model.Invoice{},
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return tools.NewRegistry(tools.New(store), zap.NewNop())
}

func session() tools.Session {
	return tools.Session{Role: model.RoleOwner, Persona: model.PersonaPA, Currency: model.GBP, Clock: model.FixedClock(fixedNow)}
}

func toolCall(id, name, args string) model.ChatResponse {
	return model.ChatResponse{ToolCalls: []model.ToolCallRequest{{ID: id, Name: name, Arguments: args}}}
}

func steps(entries []AuditEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Step)
	}
	return out
}

func TestRun_ToolThenText(t *testing.T) {
	stub := model.NewScriptedModel(
		toolCall("call_a", "list_tasks", `{"project_id":"p1"}`),
		model.ChatResponse{Content: "You have one open task."},
	)
	orc := New(stub, newRegistry(t), WithRunIDs(func() string { return "run-1" }))

	res, err := orc.Run(context.Background(), Request{Command: "what's open on the website?", Session: session()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Answer != "You have one open task." || res.State != StateDone || res.RunID != "run-1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	got := steps(res.Audit)
	want := []string{StepToolCall, StepToolResult, "model_round_2"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("audit steps = %v, want %v", got, want)
	}
	if res.Audit[0].Detail != "Calling list_tasks" || res.Audit[1].Detail != "ok" || !res.Audit[1].OK {
		t.Fatalf("unexpected tool entries: %+v", res.Audit[:2])
	}
	if res.Audit[2].Detail != "No tool call: returning text." {
		t.Fatalf("unexpected round entry: %+v", res.Audit[2])
	}

	calls := stub.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(calls))
	}
	second := calls[1].Messages
	last := second[len(second)-1]
	if last.Role != model.MessageTool || last.ToolCallID != "call_a" || last.Name != "list_tasks" {
		t.Fatalf("tool message not tagged with its call: %+v", last)
	}
	if !strings.Contains(last.Content, `"ok":true`) || !strings.Contains(last.Content, "Hire designer") {
		t.Fatalf("tool message content = %s", last.Content)
	}
	assistant := second[len(second)-2]
	if assistant.Role != model.MessageAssistant || len(assistant.ToolCalls) != 1 {
		t.Fatalf("assistant tool-call message missing: %+v", assistant)
	}
}

func TestRun_RoundBudgetForcesFinalCall(t *testing.T) {
	stub := model.NewScriptedModel(model.ChatResponse{
		Content:   "Wrapping up.",
		ToolCalls: []model.ToolCallRequest{{ID: "c", Name: "weekly_summary", Arguments: "{}"}},
	})
	orc := New(stub, newRegistry(t), WithMaxRounds(3))

	res, err := orc.Run(context.Background(), Request{Command: "loop forever", Session: session()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	calls := stub.Calls()
	if len(calls) != 4 || res.ModelCalls != 4 {
		t.Fatalf("expected 4 model calls, got %d (result says %d)", len(calls), res.ModelCalls)
	}
	for i := 0; i < 3; i++ {
		if len(calls[i].Tools) == 0 {
			t.Fatalf("round %d should offer tools", i+1)
		}
	}
	if len(calls[3].Tools) != 0 {
		t.Fatal("forced final call must not offer tools")
	}
	if res.State != StateMaxRoundsExceeded || res.Answer != "Wrapping up." || res.ToolCalls != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if n := len(res.Audit); n != 7 {
		t.Fatalf("expected 7 audit entries, got %d: %v", n, steps(res.Audit))
	}
	if last := res.Audit[6]; last.Step != StepMaxRoundsReached || last.Detail != "Stopped after max rounds; summarised." {
		t.Fatalf("unexpected final entry: %+v", last)
	}
}

func TestRun_TransportFailurePropagates(t *testing.T) {
	stub := model.NewScriptedModel(model.ChatResponse{Content: "never"}).FailAt(0, errors.New("connection refused"))
	orc := New(stub, newRegistry(t))

	res, err := orc.Run(context.Background(), Request{Command: "hi", Session: session()})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, model.ErrTransportFailure) || model.KindOf(err) != model.KindTransportFailure {
		t.Fatalf("expected transport failure, got %v", err)
	}
	if res.Answer != "" {
		t.Fatalf("a failed run has no answer, got %q", res.Answer)
	}
}

func TestRun_TransportFailureAfterToolRound(t *testing.T) {
	stub := model.NewScriptedModel(toolCall("x", "list_tasks", `{"project_id":"p1"}`)).
		FailAt(1, &model.ProviderError{Code: "RATE_LIMIT", Message: "slow down", Retryable: true, StatusCode: 429})
	orc := New(stub, newRegistry(t))

	res, err := orc.Run(context.Background(), Request{Command: "hi", Session: session()})
	var pe *model.ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != 429 {
		t.Fatalf("provider error should stay inspectable, got %v", err)
	}
	if len(res.Audit) != 2 {
		t.Fatalf("audit up to the failure should be kept, got %v", steps(res.Audit))
	}
}

func TestRun_CallTimeout(t *testing.T) {
	orc := New(blockingModel{}, newRegistry(t), WithCallTimeout(20*time.Millisecond))
	_, err := orc.Run(context.Background(), Request{Command: "hi", Session: session()})
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, model.ErrTransportFailure) {
		t.Fatalf("expected timed-out transport failure, got %v", err)
	}
}

type blockingModel struct{}

func (blockingModel) Chat(ctx context.Context, _ []model.ChatMessage, _ []model.ToolSpec) (model.ChatResponse, error) {
	<-ctx.Done()
	return model.ChatResponse{}, ctx.Err()
}

func TestRun_ToolErrorsAreFeedback(t *testing.T) {
	stub := model.NewScriptedModel(
		model.ChatResponse{ToolCalls: []model.ToolCallRequest{
			{ID: "1", Name: "launch_rockets", Arguments: "{}"},
			{ID: "2", Name: "create_task", Arguments: `{"project_id": "p1", "title": `},
			{ID: "3", Name: "move_task", Arguments: `{"task_query_or_id":"nothing like it","new_status":"done"}`},
		}},
		model.ChatResponse{Content: "Sorry, I couldn't do that."},
	)
	orc := New(stub, newRegistry(t))
	res, err := orc.Run(context.Background(), Request{Command: "do things", Session: session()})
	if err != nil {
		t.Fatalf("tool failures must not abort the run: %v", err)
	}
	if res.State != StateDone || res.Answer != "Sorry, I couldn't do that." {
		t.Fatalf("unexpected result: %+v", res)
	}
	results := []AuditEntry{res.Audit[1], res.Audit[3], res.Audit[5]}
	prefixes := []string{"UNKNOWN_TOOL: unknown tool: launch_rockets", "INVALID_ARGUMENT: ", "NOT_FOUND: "}
	for i, e := range results {
		if e.Step != StepToolResult || e.OK || !strings.HasPrefix(e.Detail, prefixes[i]) {
			t.Fatalf("entry %d = %+v, want failure starting %q", i, e, prefixes[i])
		}
	}
}

func TestRun_CallsInOneRoundSeeEarlierWrites(t *testing.T) {
	stub := model.NewScriptedModel(
		model.ChatResponse{ToolCalls: []model.ToolCallRequest{
			{Name: "create_task", Arguments: `{"project_id":"p1","title":"Ship it"}`},
			{Name: "list_tasks", Arguments: `{"project_id":"p1"}`},
		}},
		model.ChatResponse{Content: "Done."},
	)
	orc := New(stub, newRegistry(t))
	if _, err := orc.Run(context.Background(), Request{Command: "add and list", Session: session()}); err != nil {
		t.Fatal(err)
	}
	msgs := stub.Calls()[1].Messages
	listed := msgs[len(msgs)-1]
	if listed.ToolCallID != "call_1_2" || !strings.Contains(listed.Content, "Ship it") {
		t.Fatalf("second call should observe the created task: %+v", listed)
	}
}

func TestRun_SeedConversation(t *testing.T) {
	stub := model.NewScriptedModel(model.ChatResponse{Content: ""})
	orc := New(stub, newRegistry(t))
	sess := session()
	sess.Persona = model.PersonaAccountant
	sess.Currency = model.EUR

	res, err := orc.Run(context.Background(), Request{Command: "  summarise  ", Session: sess, Tab: "ops"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "(no content)" {
		t.Fatalf("empty content answer = %q", res.Answer)
	}
	msgs := stub.Calls()[0].Messages
	if len(msgs) != 4 {
		t.Fatalf("expected 4 seed messages, got %d", len(msgs))
	}
	if msgs[0].Content != SystemPrompt(model.PersonaAccountant) {
		t.Fatalf("persona prompt = %q", msgs[0].Content)
	}
	if msgs[1].Content != "Default currency: EUR. Keep answers concise." || msgs[2].Content != "Focus area: ops." {
		t.Fatalf("unexpected system messages: %+v", msgs[1:3])
	}
	if msgs[3].Role != model.MessageUser || msgs[3].Content != "summarise" {
		t.Fatalf("unexpected user message: %+v", msgs[3])
	}
}

func TestRun_RejectsEmptyCommand(t *testing.T) {
	orc := New(model.NewScriptedModel(), newRegistry(t))
	_, err := orc.Run(context.Background(), Request{Command: "   ", Session: session()})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestRun_ObserverSeesEntriesInOrder(t *testing.T) {
	stub := model.NewScriptedModel(toolCall("a", "weekly_summary", ""), model.ChatResponse{Content: "ok"})
	orc := New(stub, newRegistry(t))
	var seen []string
	res, err := orc.Run(context.Background(), Request{
		Command:  "weekly",
		Session:  session(),
		Observer: func(e AuditEntry) { seen = append(seen, e.Step) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(seen, ",") != strings.Join(steps(res.Audit), ",") {
		t.Fatalf("observer saw %v, audit has %v", seen, steps(res.Audit))
	}
	if !res.Audit[0].Time.Equal(fixedNow) {
		t.Fatalf("audit time should come from the session clock, got %v", res.Audit[0].Time)
	}
}
