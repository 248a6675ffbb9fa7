package export_test

import (
	"strings"
	"testing"
	"time"

	"github.com/edgard/leadscout/internal/database"
	"github.com/edgard/leadscout/internal/export"
)

func TestWriteRecordsCSV(t *testing.T) {
	t.Parallel()

	records := []database.Record{
		{
			Sender:      "Alice",
			Body:        "call me, 01011112222",
			Phone:       "01011112222",
			MessageTime: "2026-08-30T10:00:00+0000",
			Source:      "PageA",
			Category:    "beauty",
			Status:      "none",
		},
	}

	var sb strings.Builder
	if err := export.WriteRecordsCSV(&sb, records); err != nil {
		t.Fatalf("WriteRecordsCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "Sender,Message,Phone,Created,Source,Category,Status" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	// The body contains a comma and must be quoted.
	if lines[1] != `Alice,"call me, 01011112222",01011112222,2026-08-30T10:00:00+0000,PageA,beauty,none` {
		t.Errorf("unexpected row: %q", lines[1])
	}
}

func TestWriteAuditCSV(t *testing.T) {
	t.Parallel()

	entries := []database.AuditEntry{
		{
			FetchTime:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
			Sender:      "Bob",
			Body:        "01033334444",
			Phone:       "01033334444",
			MessageTime: "t1",
			Source:      "PageB",
		},
	}

	var sb strings.Builder
	if err := export.WriteAuditCSV(&sb, entries); err != nil {
		t.Fatalf("WriteAuditCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[1] != "2026-08-30T12:00:00Z,Bob,01033334444,01033334444,t1,PageB" {
		t.Errorf("unexpected row: %q", lines[1])
	}
}
