package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/leadscout/internal/category"
)

// ErrInvalidStatus is returned when a status outside the closed set is
// assigned. The record is left unchanged.
var ErrInvalidStatus = errors.New("invalid status")

// ErrUnknownRecord is returned when a status update targets a
// (phone, source) key that does not exist.
var ErrUnknownRecord = errors.New("unknown record")

// RecordFilter narrows ListRecords results. Zero values mean "no filter".
type RecordFilter struct {
	Source string
	Status string
	Phones []string
}

// Store is the data access layer. It is the single writer of the record
// table: all merges go through MergeCandidates, which runs in one
// transaction so concurrent extraction runs cannot interleave
// read-modify-write cycles.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// MergeCandidates merges candidates into the record table under the
	// (phone, source) uniqueness key. First-seen wins; duplicates within
	// the batch and against existing rows count as skipped. Inserted rows
	// get status "none" and the derived category.
	// Invariant: newCount + skippedCount == len(candidates).
	MergeCandidates(ctx context.Context, candidates []Candidate) (newCount, skippedCount int, err error)

	// AppendAuditEntries appends every candidate verbatim, stamped with
	// fetchTime. Never deduplicates. Callers must treat failures as
	// best-effort: an audit failure never rolls back a merge.
	AppendAuditEntries(ctx context.Context, fetchTime time.Time, candidates []Candidate) error

	// ListRecords returns records matching the filter, newest first.
	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)

	// UpdateStatus sets the status of exactly one record. Fails with
	// ErrInvalidStatus for values outside the closed set and
	// ErrUnknownRecord when the key does not exist.
	UpdateStatus(ctx context.Context, phone, source, status string) error

	// ListAuditEntries returns audit entries, newest first, optionally
	// filtered by source and capped by limit (0 means no cap).
	ListAuditEntries(ctx context.Context, source string, limit int) ([]AuditEntry, error)

	// CountRecords returns the total number of stored records.
	CountRecords(ctx context.Context) (int, error)

	// CountAuditEntries returns the total number of audit rows.
	CountAuditEntries(ctx context.Context) (int, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db         *sqlx.DB
	categories *category.Map
	logger     *slog.Logger
}

// NewStore creates a Store backed by sqlx. The category map supplies the
// derived category for newly inserted records.
func NewStore(db *sqlx.DB, categories *category.Map, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:         db,
		categories: categories,
		logger:     logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) MergeCandidates(ctx context.Context, candidates []Candidate) (int, int, error) {
	if len(candidates) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for merge", "error", err)
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back merge transaction", "error", rollbackErr)
			}
		}
	}()

	now := time.Now().UTC()
	newCount := 0
	skippedCount := 0

	// Keys inserted earlier in this batch also count as duplicates.
	seen := make(map[[2]string]struct{}, len(candidates))

	for _, c := range candidates {
		key := [2]string{c.Phone, c.Source}
		if _, dup := seen[key]; dup {
			skippedCount++
			continue
		}

		var exists bool
		err := tx.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM records WHERE phone = ? AND source = ?)`, c.Phone, c.Source)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error checking for existing record",
				"phone", c.Phone, "source", c.Source, "error", err)
			return 0, 0, fmt.Errorf("failed to check for existing record: %w", err)
		}

		seen[key] = struct{}{}

		if exists {
			skippedCount++
			continue
		}

		record := Record{
			CreatedAt:   now,
			UpdatedAt:   now,
			Sender:      c.Sender,
			Body:        c.Body,
			Phone:       c.Phone,
			MessageTime: c.MessageTime,
			Source:      c.Source,
			Category:    s.categories.Derive(c.Source),
			Status:      StatusNone,
		}

		query := `
	        INSERT INTO records (created_at, updated_at, sender, body, phone, message_time, source, category, status)
	        VALUES (:created_at, :updated_at, :sender, :body, :phone, :message_time, :source, :category, :status);
	    `
		if _, err := tx.NamedExecContext(ctx, query, record); err != nil {
			s.logger.ErrorContext(ctx, "Error inserting record",
				"phone", c.Phone, "source", c.Source, "error", err)
			return 0, 0, fmt.Errorf("failed to insert record (phone %s, source %s): %w", c.Phone, c.Source, err)
		}
		newCount++
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit merge transaction", "error", err)
		return 0, 0, fmt.Errorf("failed to commit merge transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Merge completed",
		"candidates", len(candidates), "new", newCount, "skipped", skippedCount)
	return newCount, skippedCount, nil
}

func (s *sqlxStore) AppendAuditEntries(ctx context.Context, fetchTime time.Time, candidates []Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for audit append: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back audit transaction", "error", rollbackErr)
			}
		}
	}()

	query := `
	        INSERT INTO audit_log (fetch_time, sender, body, phone, message_time, source)
	        VALUES (:fetch_time, :sender, :body, :phone, :message_time, :source);
	    `

	for _, c := range candidates {
		entry := AuditEntry{
			FetchTime:   fetchTime,
			Sender:      c.Sender,
			Body:        c.Body,
			Phone:       c.Phone,
			MessageTime: c.MessageTime,
			Source:      c.Source,
		}
		if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Audit entries appended", "count", len(candidates))
	return nil
}

func (s *sqlxStore) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	query := `SELECT id, created_at, updated_at, sender, body, phone, message_time, source, category, status
	          FROM records WHERE 1=1`
	var args []interface{}

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if len(filter.Phones) > 0 {
		inQuery, inArgs, err := sqlx.In(` AND phone IN (?)`, filter.Phones)
		if err != nil {
			return nil, fmt.Errorf("failed to build phone filter: %w", err)
		}
		query += inQuery
		args = append(args, inArgs...)
	}

	query += ` ORDER BY created_at DESC, id DESC`
	query = s.db.Rebind(query)

	var records []Record
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Error listing records", "error", err)
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

func (s *sqlxStore) UpdateStatus(ctx context.Context, phone, source, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE records SET status = ?, updated_at = ? WHERE phone = ? AND source = ?`,
		status, time.Now().UTC(), phone, source)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating record status",
			"phone", phone, "source", source, "error", err)
		return fmt.Errorf("failed to update status for (%s, %s): %w", phone, source, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected row count: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: (%s, %s)", ErrUnknownRecord, phone, source)
	}

	s.logger.DebugContext(ctx, "Record status updated", "phone", phone, "source", source, "status", status)
	return nil
}

func (s *sqlxStore) ListAuditEntries(ctx context.Context, source string, limit int) ([]AuditEntry, error) {
	query := `SELECT id, fetch_time, sender, body, phone, message_time, source FROM audit_log`
	var args []interface{}

	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var entries []AuditEntry
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Error listing audit entries", "error", err)
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

func (s *sqlxStore) CountRecords(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM records`); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

func (s *sqlxStore) CountAuditEntries(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM audit_log`); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

// RunSQLMaintenance executes a VACUUM on the SQLite database. VACUUM must
// run outside a transaction.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
