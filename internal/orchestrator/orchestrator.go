// Package orchestrator drives the model/tool conversation for one command.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bizassist/internal/model"
	"bizassist/internal/tools"
)

// State is the loop's position in a run.
type State string

const (
	StateAwaitingModel     State = "AWAITING_MODEL"
	StateExecutingTools    State = "EXECUTING_TOOLS"
	StateDone              State = "DONE"
	StateMaxRoundsExceeded State = "MAX_ROUNDS_EXCEEDED"
)

const (
	DefaultMaxRounds = 3

	noContent = "(no content)"
)

// Request is one user command plus the session it runs under.
type Request struct {
	Command string
	Session tools.Session
	// Tab is the presentation's current focus (crm, projects, ops), if any.
	Tab string
	// Observer, when set, receives each audit entry as it is appended.
	Observer func(AuditEntry)
}

// Result is the outcome of a run.
type Result struct {
	RunID      string              `json:"run_id"`
	Answer     string              `json:"answer"`
	State      State               `json:"state"`
	Rounds     int                 `json:"rounds"`
	ModelCalls int                 `json:"model_calls"`
	ToolCalls  int                 `json:"tool_calls"`
	Audit      []AuditEntry        `json:"audit"`
	Messages   []model.ChatMessage `json:"-"`
}

type Option func(*Orchestrator)

// WithMaxRounds bounds the number of tool-bearing rounds.
func WithMaxRounds(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRounds = n
		}
	}
}

// WithCallTimeout bounds each model call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRunIDs replaces the run id generator.
func WithRunIDs(next func() string) Option {
	return func(o *Orchestrator) {
		if next != nil {
			o.newRunID = next
		}
	}
}

// Orchestrator runs commands against one model and one tool registry. Runs
// are serialized: the workspace behind the registry sees one run at a time.
type Orchestrator struct {
	mu sync.Mutex

	chat        model.ChatModel
	registry    *tools.Registry
	logger      *zap.Logger
	maxRounds   int
	callTimeout time.Duration
	newRunID    func() string
}

func New(chat model.ChatModel, registry *tools.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		chat:      chat,
		registry:  registry,
		logger:    zap.NewNop(),
		maxRounds: DefaultMaxRounds,
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MaxRounds reports the configured round budget.
func (o *Orchestrator) MaxRounds() int {
	return o.maxRounds
}

// Registry returns the tool registry the orchestrator dispatches to.
func (o *Orchestrator) Registry() *tools.Registry {
	return o.registry
}

// Run executes one command. Tool failures are fed back to the model; a
// failed model call ends the run with a TRANSPORT_FAILURE error and no
// answer.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	command := strings.TrimSpace(req.Command)
	if command == "" {
		return Result{}, model.InvalidArgument("command must not be empty")
	}
	if o.chat == nil || o.registry == nil {
		return Result{}, errors.New("orchestrator is not configured with a model and a tool registry")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	sess := req.Session
	if sess.Currency == "" {
		sess.Currency = model.DefaultCurrency
	}
	sess.Persona = model.ParsePersona(string(sess.Persona))
	clock := sess.Clock
	if clock == nil {
		clock = model.SystemClock
	}

	runID := o.newRunID()
	logger := o.logger.With(zap.String("run_id", runID))
	audit := newAuditLog(clock.Now, req.Observer)
	res := Result{RunID: runID, State: StateAwaitingModel}
	messages := seedConversation(sess.Persona, sess.Currency, req.Tab, command)
	specs := o.registry.Specs()

	finish := func(state State, answer string) (Result, error) {
		res.State = state
		res.Answer = answer
		res.Audit = audit.Entries()
		res.Messages = messages
		logger.Info("run finished",
			zap.String("state", string(state)),
			zap.Int("rounds", res.Rounds),
			zap.Int("model_calls", res.ModelCalls),
			zap.Int("tool_calls", res.ToolCalls))
		return res, nil
	}
	fail := func(err error) (Result, error) {
		res.Audit = audit.Entries()
		res.Messages = messages
		logger.Warn("run aborted", zap.String("state", string(res.State)), zap.Error(err))
		return res, err
	}

	logger.Info("run started", zap.String("role", string(sess.Role)), zap.String("persona", string(sess.Persona)))
	for round := 1; round <= o.maxRounds; round++ {
		res.State = StateAwaitingModel
		res.Rounds = round
		resp, err := o.call(ctx, messages, specs)
		res.ModelCalls++
		if err != nil {
			return fail(transportError(err, round))
		}

		if len(resp.ToolCalls) == 0 {
			audit.append(AuditEntry{Step: StepModelRound(round), OK: true, Detail: "No tool call: returning text."})
			return finish(StateDone, answerText(resp.Content))
		}

		res.State = StateExecutingTools
		calls := normalizeCallIDs(resp.ToolCalls, round)
		messages = append(messages, model.ChatMessage{
			Role:      model.MessageAssistant,
			Content:   resp.Content,
			ToolCalls: calls,
		})
		for _, tc := range calls {
			result, call := o.execute(ctx, sess, tc, audit)
			res.ToolCalls++
			logger.Debug("tool call", zap.Int("round", round), zap.String("tool", call.Name), zap.Bool("ok", result.OK))
			messages = append(messages, model.ChatMessage{
				Role:       model.MessageTool,
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Content:    encodeResult(result),
			})
		}
	}

	res.State = StateMaxRoundsExceeded
	resp, err := o.call(ctx, messages, nil)
	res.ModelCalls++
	if err != nil {
		return fail(transportError(err, o.maxRounds+1))
	}
	audit.append(AuditEntry{Step: StepMaxRoundsReached, OK: true, Detail: "Stopped after max rounds; summarised."})
	return finish(StateMaxRoundsExceeded, answerText(resp.Content))
}

// execute decodes and runs one requested call, recording it in the audit
// log. Malformed arguments become a failed result.
func (o *Orchestrator) execute(ctx context.Context, sess tools.Session, req model.ToolCallRequest, audit *AuditLog) (model.ToolResult, model.ToolCall) {
	call, err := model.DecodeToolCall(req)
	audit.append(AuditEntry{Step: StepToolCall, OK: true, Detail: "Calling " + call.Name, ToolCall: &call})

	var result model.ToolResult
	if err != nil {
		result = model.ToolResult{Name: call.Name, Error: err.Error()}
	} else {
		result = o.registry.Execute(ctx, sess, call)
	}
	detail := "ok"
	if !result.OK {
		detail = result.Error
	}
	audit.append(AuditEntry{Step: StepToolResult, OK: result.OK, Detail: detail, ToolCall: &call, ToolResult: &result})
	return result, call
}

func (o *Orchestrator) call(ctx context.Context, messages []model.ChatMessage, specs []model.ToolSpec) (model.ChatResponse, error) {
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
	}
	return o.chat.Chat(ctx, append([]model.ChatMessage(nil), messages...), specs)
}

func transportError(err error, round int) error {
	var e *model.Error
	if errors.As(err, &e) && e.Kind == model.KindTransportFailure {
		return err
	}
	return model.TransportFailure(err, "model call in round %d failed: %v", round, err)
}

// normalizeCallIDs gives every call an id so tool messages can reference it.
func normalizeCallIDs(calls []model.ToolCallRequest, round int) []model.ToolCallRequest {
	out := make([]model.ToolCallRequest, len(calls))
	for i, c := range calls {
		if strings.TrimSpace(c.ID) == "" {
			c.ID = fmt.Sprintf("call_%d_%d", round, i+1)
		}
		out[i] = c
	}
	return out
}

func encodeResult(result model.ToolResult) string {
	raw, err := json.Marshal(result)
	if err != nil {
		fallback, _ := json.Marshal(model.ToolResult{Name: result.Name, Error: "result could not be encoded: " + err.Error()})
		return string(fallback)
	}
	return string(raw)
}

func answerText(content string) string {
	if strings.TrimSpace(content) == "" {
		return noContent
	}
	return content
}
