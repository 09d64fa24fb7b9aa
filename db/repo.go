package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"playjelly/events"
)

// Repository is the single access point to the status tables. Every write
// publishes a change event on the broker, if one is set.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	events  *events.Broker
	now     func() time.Time
}

func NewRepository(conn *sql.DB, dialect Dialect, broker *events.Broker) *Repository {
	return &Repository{db: conn, dialect: dialect, events: broker, now: time.Now}
}

func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) Dialect() Dialect { return r.dialect }

func (r *Repository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func newID() string { return uuid.NewString() }

func nullString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// DayKey formats t as the UTC calendar day used by uptime_history.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// lockClause row-locks a SELECT inside a transaction. SQLite serializes
// writers on its own.
func (r *Repository) lockClause() string {
	if r.dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// SetClock replaces the repository's time source.
func (r *Repository) SetClock(now func() time.Time) { r.now = now }
