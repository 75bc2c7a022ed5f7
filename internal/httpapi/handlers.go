package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"bizassist/internal/export"
	"bizassist/internal/model"
	"bizassist/internal/orchestrator"
	"bizassist/internal/store"
	"bizassist/internal/tools"
)

const maxRunBodyBytes = 64 << 10

type runRequest struct {
	Command  string `json:"command"`
	Role     string `json:"role,omitempty"`
	Persona  string `json:"persona,omitempty"`
	Currency string `json:"currency,omitempty"`
	Tab      string `json:"tab,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": s.opts.Orchestrator.Registry().Definitions(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Stats.Snapshot())
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRunBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(model.KindInvalidArgument), "request body must be a JSON object")
		return
	}
	sess, err := s.session(req)
	if err != nil {
		writeModelError(w, err)
		return
	}

	finish := s.opts.Stats.Begin()
	res, err := s.opts.Orchestrator.Run(r.Context(), orchestrator.Request{
		Command: req.Command,
		Session: sess,
		Tab:     req.Tab,
	})
	finish(res, err)
	if err != nil {
		writeModelError(w, err)
		return
	}
	s.archive(r, req, sess, res)
	writeJSON(w, http.StatusOK, res)
}

// session layers the request's preferences over the configured defaults.
func (s *Server) session(req runRequest) (tools.Session, error) {
	sess := s.opts.Session
	if strings.TrimSpace(req.Role) != "" {
		role, ok := model.ParseRole(req.Role)
		if !ok {
			return sess, model.InvalidArgument("unknown role %q", req.Role)
		}
		sess.Role = role
	}
	if strings.TrimSpace(req.Persona) != "" {
		sess.Persona = model.ParsePersona(req.Persona)
	}
	if strings.TrimSpace(req.Currency) != "" {
		c, ok := model.ParseCurrency(req.Currency)
		if !ok {
			return sess, model.InvalidArgument("unsupported currency %q", req.Currency)
		}
		sess.Currency = c
	}
	return sess, nil
}

func (s *Server) archive(r *http.Request, req runRequest, sess tools.Session, res orchestrator.Result) {
	if s.opts.Archive == nil {
		return
	}
	rec := store.RunRecord{
		Command:   req.Command,
		Role:      sess.Role,
		Persona:   sess.Persona,
		Result:    res,
		Workspace: s.opts.Store.Snapshot(),
		SavedAt:   time.Now().UTC(),
	}
	if err := s.opts.Archive.SaveRun(r.Context(), rec); err != nil {
		s.logger.Warn("archive run failed", zap.String("run_id", res.RunID), zap.Error(err))
	}
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["collection"]
	records, err := export.Collection(s.opts.Store.Snapshot(), name)
	if err != nil {
		writeModelError(w, err)
		return
	}
	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", "json":
		writeJSON(w, http.StatusOK, records)
	case "csv":
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, records); err != nil && !errors.Is(err, export.ErrNoRecords) {
			writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", strings.ToLower(name)+".csv"))
		_, _ = w.Write(buf.Bytes())
	default:
		writeError(w, http.StatusBadRequest, string(model.KindInvalidArgument), fmt.Sprintf("unsupported format %q; use json or csv", format))
	}
}

func (s *Server) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st := s.opts.Store
	inv, ok := st.Invoice(id)
	if !ok {
		writeModelError(w, model.NotFound("no invoice %q", id))
		return
	}
	client, _ := st.Client(inv.ClientID)

	var buf bytes.Buffer
	if err := export.WriteInvoicePDF(&buf, inv, client); err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", inv.Number+".pdf"))
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = export.WriteJSON(w, v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

// writeModelError maps classified errors onto HTTP statuses.
func writeModelError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case model.KindInvalidArgument, model.KindMissingField, model.KindUnknownTool:
		status = http.StatusBadRequest
	case model.KindForbidden:
		status = http.StatusForbidden
	case model.KindNotFound:
		status = http.StatusNotFound
	case model.KindTransportFailure:
		status = http.StatusBadGateway
	case model.KindCancelled:
		status = http.StatusServiceUnavailable
	case "":
		kind = "INTERNAL"
	}
	writeError(w, status, string(kind), err.Error())
}
