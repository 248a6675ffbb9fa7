package database

import "time"

// Record statuses form a closed set. New records always start at
// StatusNone; the rest are workflow states set through the annotation API.
const (
	StatusNone       = "none"
	StatusContacted  = "contacted"
	StatusInterested = "interested"
	StatusConverted  = "converted"
	StatusRejected   = "rejected"
)

var validStatuses = map[string]struct{}{
	StatusNone:       {},
	StatusContacted:  {},
	StatusInterested: {},
	StatusConverted:  {},
	StatusRejected:   {},
}

// ValidStatus reports whether s belongs to the closed status set.
func ValidStatus(s string) bool {
	_, ok := validStatuses[s]
	return ok
}

// Candidate is an unconfirmed phone extraction pending deduplication. One
// message with two matches yields two candidates sharing sender, body, and
// message time.
type Candidate struct {
	Sender      string
	Body        string
	Phone       string
	MessageTime string
	Source      string
}

// Record is one stored unique phone number per source. Uniqueness is keyed
// on (Phone, Source): the first candidate seen for a key wins, later
// duplicates are skipped and never overwrite it. Only Status is mutable
// after creation.
type Record struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Sender      string `db:"sender"`
	Body        string `db:"body"`
	Phone       string `db:"phone"`
	MessageTime string `db:"message_time"`
	Source      string `db:"source"`
	Category    string `db:"category"`
	Status      string `db:"status"`
}

// AuditEntry is one append-only row per extracted candidate, duplicates
// included. Entries are never mutated or deduplicated.
type AuditEntry struct {
	ID        uint      `db:"id"`
	FetchTime time.Time `db:"fetch_time"`

	Sender      string `db:"sender"`
	Body        string `db:"body"`
	Phone       string `db:"phone"`
	MessageTime string `db:"message_time"`
	Source      string `db:"source"`
}
