// Package export renders stored records and audit entries as CSV for
// download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/edgard/leadscout/internal/database"
)

var recordHeader = []string{"Sender", "Message", "Phone", "Created", "Source", "Category", "Status"}

var auditHeader = []string{"FetchTime", "Sender", "Message", "Phone", "Created", "Source"}

// WriteRecordsCSV writes the given records as CSV, header included.
func WriteRecordsCSV(w io.Writer, records []database.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(recordHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range records {
		row := []string{r.Sender, r.Body, r.Phone, r.MessageTime, r.Source, r.Category, r.Status}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteAuditCSV writes the given audit entries as CSV, header included.
func WriteAuditCSV(w io.Writer, entries []database.AuditEntry) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(auditHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range entries {
		row := []string{
			e.FetchTime.UTC().Format(time.RFC3339),
			e.Sender, e.Body, e.Phone, e.MessageTime, e.Source,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
