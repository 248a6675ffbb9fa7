package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/edgard/leadscout/internal/category"
	"github.com/edgard/leadscout/internal/database"
	"github.com/edgard/leadscout/internal/extractor"
	"github.com/edgard/leadscout/internal/server"
)

type fakeTrigger struct {
	report *extractor.RunReport
	err    error
}

func (f *fakeTrigger) TriggerRun(context.Context) (*extractor.RunReport, error) {
	return f.report, f.err
}

func newTestServer(t *testing.T, trigger server.RunTrigger) (http.Handler, database.Store) {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := database.NewStore(db, category.NewMap(nil, "uncategorized"), log)

	return server.New(store, trigger, log).Router(), store
}

func seedRecord(t *testing.T, store database.Store, phone, source string) {
	t.Helper()

	_, _, err := store.MergeCandidates(context.Background(), []database.Candidate{{
		Sender: "Alice", Body: "b", Phone: phone, MessageTime: "t", Source: source,
	}})
	if err != nil {
		t.Fatalf("MergeCandidates() error = %v", err)
	}
}

func TestListRecords(t *testing.T) {
	t.Parallel()

	handler, store := newTestServer(t, &fakeTrigger{})
	seedRecord(t, store, "01011112222", "PageA")
	seedRecord(t, store, "01033334444", "PageB")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records?source=PageA", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Count   int               `json:"count"`
		Records []database.Record `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body.Count != 1 || body.Records[0].Phone != "01011112222" {
		t.Errorf("unexpected response: %+v", body)
	}
}

func TestExportRecordsCSV(t *testing.T) {
	t.Parallel()

	handler, store := newTestServer(t, &fakeTrigger{})
	seedRecord(t, store, "01011112222", "PageA")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records/export?phones=01011112222", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if !strings.Contains(rec.Body.String(), "01011112222") {
		t.Errorf("export body missing record: %q", rec.Body.String())
	}
}

func seedAuditEntry(t *testing.T, store database.Store, phone, source string) {
	t.Helper()

	err := store.AppendAuditEntries(context.Background(), time.Now().UTC(), []database.Candidate{{
		Sender: "Alice", Body: "b", Phone: phone, MessageTime: "t", Source: source,
	}})
	if err != nil {
		t.Fatalf("AppendAuditEntries() error = %v", err)
	}
}

func TestExportAuditCSV(t *testing.T) {
	t.Parallel()

	handler, store := newTestServer(t, &fakeTrigger{})
	seedAuditEntry(t, store, "01011112222", "PageA")
	seedAuditEntry(t, store, "01033334444", "PageB")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit/export?source=PageA", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "01011112222") {
		t.Errorf("export body missing audit entry: %q", body)
	}
	if strings.Contains(body, "01033334444") {
		t.Errorf("source filter ignored, body: %q", body)
	}
}

func TestExportAuditRejectsBadLimit(t *testing.T) {
	t.Parallel()

	handler, _ := newTestServer(t, &fakeTrigger{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit/export?limit=-1", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	handler, store := newTestServer(t, &fakeTrigger{})
	seedRecord(t, store, "01011112222", "PageA")
	seedAuditEntry(t, store, "01011112222", "PageA")
	seedAuditEntry(t, store, "01011112222", "PageA")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Records      int `json:"records"`
		AuditEntries int `json:"audit_entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body.Records != 1 || body.AuditEntries != 2 {
		t.Errorf("stats = %+v, want records=1 audit_entries=2", body)
	}
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	handler, store := newTestServer(t, &fakeTrigger{})
	seedRecord(t, store, "01011112222", "PageA")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "valid update",
			body:       `{"source": "PageA", "phone": "01011112222", "status": "contacted"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid status value",
			body:       `{"source": "PageA", "phone": "01011112222", "status": "nonsense"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown record",
			body:       `{"source": "PageA", "phone": "01099999999", "status": "contacted"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing fields",
			body:       `{"status": "contacted"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPatch, "/api/records/status", strings.NewReader(tt.body))
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body: %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestTriggerRun(t *testing.T) {
	t.Parallel()

	report := &extractor.RunReport{ID: "run-1"}
	handler, _ := newTestServer(t, &fakeTrigger{report: report})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "run-1") {
		t.Errorf("response missing run id: %q", rec.Body.String())
	}
}

func TestTriggerRunRejected(t *testing.T) {
	t.Parallel()

	handler, _ := newTestServer(t, &fakeTrigger{err: context.DeadlineExceeded})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}
