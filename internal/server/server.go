// Package server exposes the record store over an HTTP API: listing and
// exporting records, updating statuses, browsing the audit log, and
// triggering extraction runs. The server is stateless; every request
// re-reads current store state.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/edgard/leadscout/internal/database"
	"github.com/edgard/leadscout/internal/export"
	"github.com/edgard/leadscout/internal/extractor"
)

// RunTrigger starts an extraction run subject to the scheduling policy.
// Implemented by app.Runner.
type RunTrigger interface {
	TriggerRun(ctx context.Context) (*extractor.RunReport, error)
}

// Server handles the HTTP API.
type Server struct {
	store   database.Store
	trigger RunTrigger
	log     *slog.Logger
}

// New creates a Server.
func New(store database.Store, trigger RunTrigger, log *slog.Logger) *Server {
	return &Server{
		store:   store,
		trigger: trigger,
		log:     log.With("component", "server"),
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/records", s.handleListRecords)
		r.Get("/records/export", s.handleExportRecords)
		r.Patch("/records/status", s.handleUpdateStatus)
		r.Get("/audit", s.handleListAudit)
		r.Get("/audit/export", s.handleExportAudit)
		r.Get("/stats", s.handleStats)
		r.Post("/runs", s.handleTriggerRun)
	})

	return r
}

// HTTPServer wraps the router in an http.Server bound to addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func recordFilterFromQuery(r *http.Request) database.RecordFilter {
	filter := database.RecordFilter{
		Source: r.URL.Query().Get("source"),
		Status: r.URL.Query().Get("status"),
	}
	if phones := r.URL.Query().Get("phones"); phones != "" {
		filter.Phones = strings.Split(phones, ",")
	}
	return filter
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListRecords(r.Context(), recordFilterFromQuery(r))
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to list records", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

func (s *Server) handleExportRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListRecords(r.Context(), recordFilterFromQuery(r))
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to list records for export", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to export records")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="records.csv"`)
	if err := export.WriteRecordsCSV(w, records); err != nil {
		s.log.ErrorContext(r.Context(), "Failed to write CSV export", "error", err)
	}
}

type statusUpdateRequest struct {
	Source string `json:"source"`
	Phone  string `json:"phone"`
	Status string `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" || req.Phone == "" {
		s.writeError(w, http.StatusBadRequest, "source and phone are required")
		return
	}

	err := s.store.UpdateStatus(r.Context(), req.Phone, req.Source, req.Status)
	switch {
	case errors.Is(err, database.ErrInvalidStatus):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrUnknownRecord):
		s.writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.log.ErrorContext(r.Context(), "Failed to update status", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update status")
	default:
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func auditLimitFromQuery(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return 0, errors.New("invalid limit")
	}
	return parsed, nil
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := auditLimitFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.store.ListAuditEntries(r.Context(), r.URL.Query().Get("source"), limit)
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to list audit entries", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) handleExportAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := auditLimitFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.store.ListAuditEntries(r.Context(), r.URL.Query().Get("source"), limit)
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to list audit entries for export", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to export audit entries")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
	if err := export.WriteAuditCSV(w, entries); err != nil {
		s.log.ErrorContext(r.Context(), "Failed to write audit CSV export", "error", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.CountRecords(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to count records", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to count records")
		return
	}
	auditEntries, err := s.store.CountAuditEntries(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to count audit entries", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to count audit entries")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"records": records, "audit_entries": auditEntries})
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.trigger.TriggerRun(r.Context())
	if err != nil {
		// Policy rejections are expected; everything else is a server fault.
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  report.ID,
		"new":     report.TotalNew(),
		"skipped": report.TotalSkipped(),
		"failed":  report.FailedSources(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
