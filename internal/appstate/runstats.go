// Package appstate tracks live counters for a running assistant process.
package appstate

import (
	"sync/atomic"
	"time"

	"bizassist/internal/model"
	"bizassist/internal/orchestrator"
)

// RunStats counts runs and their outcomes. All methods are safe for
// concurrent use and on a nil receiver.
type RunStats struct {
	started atomic.Value // time.Time
	active  atomic.Int64

	runs        atomic.Int64
	done        atomic.Int64
	maxRounds   atomic.Int64
	failed      atomic.Int64
	transport   atomic.Int64
	modelCalls  atomic.Int64
	toolCalls   atomic.Int64
	toolErrors  atomic.Int64
	lastRunUnix atomic.Int64
}

func NewRunStats() *RunStats {
	s := &RunStats{}
	s.started.Store(time.Now().UTC())
	return s
}

// Begin marks a run in flight; call the returned func with its outcome.
func (s *RunStats) Begin() func(orchestrator.Result, error) {
	if s == nil {
		return func(orchestrator.Result, error) {}
	}
	s.active.Add(1)
	return func(res orchestrator.Result, err error) {
		s.active.Add(-1)
		s.Record(res, err)
	}
}

// Record folds one finished run into the counters.
func (s *RunStats) Record(res orchestrator.Result, err error) {
	if s == nil {
		return
	}
	s.runs.Add(1)
	s.lastRunUnix.Store(time.Now().Unix())
	s.modelCalls.Add(int64(res.ModelCalls))
	s.toolCalls.Add(int64(res.ToolCalls))
	for _, e := range res.Audit {
		if e.Step == orchestrator.StepToolResult && !e.OK {
			s.toolErrors.Add(1)
		}
	}
	switch {
	case err != nil:
		s.failed.Add(1)
		if model.KindOf(err) == model.KindTransportFailure {
			s.transport.Add(1)
		}
	case res.State == orchestrator.StateMaxRoundsExceeded:
		s.maxRounds.Add(1)
	default:
		s.done.Add(1)
	}
}

// Snapshot is a point-in-time copy of RunStats.
type Snapshot struct {
	Started           time.Time  `json:"started"`
	Active            int64      `json:"active"`
	Runs              int64      `json:"runs"`
	Done              int64      `json:"done"`
	MaxRoundsExceeded int64      `json:"max_rounds_exceeded"`
	Failed            int64      `json:"failed"`
	TransportFailures int64      `json:"transport_failures"`
	ModelCalls        int64      `json:"model_calls"`
	ToolCalls         int64      `json:"tool_calls"`
	ToolErrors        int64      `json:"tool_errors"`
	LastRun           *time.Time `json:"last_run,omitempty"`
}

func (s *RunStats) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	snap := Snapshot{
		Active:            s.active.Load(),
		Runs:              s.runs.Load(),
		Done:              s.done.Load(),
		MaxRoundsExceeded: s.maxRounds.Load(),
		Failed:            s.failed.Load(),
		TransportFailures: s.transport.Load(),
		ModelCalls:        s.modelCalls.Load(),
		ToolCalls:         s.toolCalls.Load(),
		ToolErrors:        s.toolErrors.Load(),
	}
	if t, ok := s.started.Load().(time.Time); ok {
		snap.Started = t
	}
	if unix := s.lastRunUnix.Load(); unix > 0 {
		t := time.Unix(unix, 0).UTC()
		snap.LastRun = &t
	}
	return snap
}
