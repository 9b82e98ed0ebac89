package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/askdb/internal/audit"
	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/koustreak/askdb/internal/logger"
	"github.com/koustreak/askdb/internal/metrics"
	"github.com/koustreak/askdb/internal/query"
	"github.com/koustreak/askdb/internal/schema"
	"github.com/koustreak/askdb/internal/session"
)

const (
	msgNotConnected   = "Not connected"
	msgNoDBConfigured = "No DB connection configured."

	defaultPreviewLimit = 50
	recordTimeout       = 5 * time.Second
)

type connectRequest struct {
	Driver   string   `json:"driver"`
	Host     string   `json:"host"`
	Port     flexPort `json:"port"`
	User     string   `json:"user"`
	Password string   `json:"password"`
	Database string   `json:"database"`
}

type generateRequest struct {
	Question string `json:"question"`
}

type executeRequest struct {
	SQL string `json:"sql"`
	// Question is optional provenance for the history log.
	Question string `json:"question,omitempty"`
}

type executeResponse struct {
	Success bool `json:"success"`
	*query.Result
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	_, err := s.deps.Sessions.Connect(r.Context(), database.ConnectConfig{
		Driver:   database.Dialect(req.Driver),
		Host:     req.Host,
		Port:     int(req.Port),
		User:     req.User,
		Password: req.Password,
		Database: req.Database,
	})
	metrics.ObserveConnect(err == nil)
	if err != nil {
		writeJSON(w, http.StatusOK, failure{Success: false, Message: errs.Message(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"connected": s.deps.Sessions.Connected(),
	})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	h, ok := session.FromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusOK, msgNotConnected)
		return
	}

	ctx, cancel := s.introspectContext(r.Context())
	defer cancel()

	tables, err := h.DB.ListTables(ctx)
	if err != nil {
		logger.FromContext(r.Context()).ErrorWith("list tables failed", err, nil)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tables": tables})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	h, ok := session.FromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusOK, msgNotConnected)
		return
	}

	ctx, cancel := s.introspectContext(r.Context())
	defer cancel()

	snap, err := schema.Inspect(ctx, h.DB)
	if err != nil {
		logger.FromContext(r.Context()).ErrorWith("inspect schema failed", err, nil)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "schema": snap})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Translator == nil {
		writeFailure(w, http.StatusServiceUnavailable, "sql generation is not configured")
		return
	}

	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h, ok := session.FromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusBadRequest, msgNotConnected)
		return
	}

	start := time.Now()
	tr, err := s.deps.Translator.Translate(r.Context(), h.DB, req.Question)
	if err != nil {
		if !errs.IsInvalidInput(err) {
			metrics.ObserveGeneration(s.deps.Translator.Provider(), metrics.OutcomeFailed, time.Since(start))
			logger.FromContext(r.Context()).ErrorWith("generate sql failed", err, nil)
		}
		writeError(w, generateStatus(err), err)
		return
	}
	metrics.ObserveGeneration(tr.Provider, metrics.OutcomeOK, time.Since(start))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sql":      tr.SQL,
		"provider": tr.Provider,
		"model":    tr.Model,
	})
}

func generateStatus(err error) int {
	switch errs.Kind(err) {
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindGenerationFailed:
		return http.StatusBadGateway
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	h, ok := session.FromContext(r.Context())
	if !ok {
		metrics.ObserveExecution(metrics.OutcomeNotConnected)
		writeFailure(w, http.StatusBadRequest, msgNoDBConfigured)
		return
	}

	var req executeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	start := time.Now()
	res, err := s.deps.Executor.Execute(r.Context(), h.DB, req.SQL)
	s.finishExecution(w, r, audit.Entry{Question: req.Question, SQL: req.SQL}, start, res, err)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	h, ok := session.FromContext(r.Context())
	if !ok {
		metrics.ObserveExecution(metrics.OutcomeNotConnected)
		writeFailure(w, http.StatusBadRequest, msgNoDBConfigured)
		return
	}

	limit, err := intParam(r, "limit", defaultPreviewLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	table := chi.URLParam(r, "table")
	start := time.Now()
	res, err := s.deps.Executor.Preview(r.Context(), h.DB, table, limit)
	s.finishExecution(w, r, audit.Entry{Table: table}, start, res, err)
}

// finishExecution counts, records and answers one execute or preview.
func (s *Server) finishExecution(w http.ResponseWriter, r *http.Request, entry audit.Entry, start time.Time, res *query.Result, err error) {
	entry.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		entry.Error = errs.Message(err)
		s.record(r.Context(), entry)

		status := http.StatusInternalServerError
		outcome := metrics.OutcomeFailed
		switch {
		case errs.IsRejected(err), errs.IsInvalidInput(err):
			status, outcome = http.StatusBadRequest, metrics.OutcomeRejected
		case errs.IsNotConnected(err):
			status, outcome = http.StatusBadRequest, metrics.OutcomeNotConnected
		default:
			logger.FromContext(r.Context()).ErrorWith("execute failed", err, nil)
		}
		metrics.ObserveExecution(outcome)
		writeError(w, status, err)
		return
	}

	entry.SQL = res.SQL
	entry.RowCount = len(res.Rows)
	if res.Table != nil {
		entry.Table = *res.Table
	}
	s.record(r.Context(), entry)
	metrics.ObserveExecution(metrics.OutcomeOK)

	writeJSON(w, http.StatusOK, executeResponse{Success: true, Result: res})
}

// record stores entry without letting a storage problem fail the request.
// It outlives a client that has already hung up.
func (s *Server) record(ctx context.Context, entry audit.Entry) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := s.deps.Recorder.Record(rctx, entry); err != nil {
		logger.FromContext(ctx).WarnWith("audit record failed", err, nil)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", audit.DefaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	entries, err := s.deps.Recorder.List(r.Context(), limit)
	if err != nil {
		logger.FromContext(r.Context()).ErrorWith("list history failed", err, nil)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "entries": entries})
}

func (s *Server) introspectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.deps.IntrospectTimeout > 0 {
		return context.WithTimeout(ctx, s.deps.IntrospectTimeout)
	}
	return context.WithCancel(ctx)
}
