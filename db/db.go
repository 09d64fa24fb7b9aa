package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("already exists")
	ErrIncidentResolved = errors.New("incident is resolved")
	ErrInMaintenance    = errors.New("service is in maintenance")
)

// Open connects to the database named by url. postgres:// and
// postgresql:// URLs use lib/pq; sqlite://path, sqlite:path and file:path
// use go-sqlite3.
func Open(url string) (*sql.DB, Dialect, error) {
	if url == "" {
		return nil, "", fmt.Errorf("DATABASE_URL environment variable not set")
	}

	dialect, dsn, err := parseURL(url)
	if err != nil {
		return nil, "", err
	}
	if dialect == SQLite {
		if path := sqlitePath(dsn); path != "" && path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, "", fmt.Errorf("mkdir data dir: %w", err)
			}
		}
	}

	conn, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, "", err
	}
	if dialect == SQLite {
		// One writer avoids SQLITE_BUSY between concurrent probe goroutines.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, "", err
	}
	return conn, dialect, nil
}

func parseURL(url string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return Postgres, url, nil
	case strings.HasPrefix(url, "sqlite://"):
		return SQLite, sqliteDSN(strings.TrimPrefix(url, "sqlite://")), nil
	case strings.HasPrefix(url, "sqlite:"):
		return SQLite, sqliteDSN(strings.TrimPrefix(url, "sqlite:")), nil
	case strings.HasPrefix(url, "file:"):
		return SQLite, sqliteDSN(strings.TrimPrefix(url, "file:")), nil
	}
	return "", "", fmt.Errorf("unsupported database url %q", url)
}

func sqliteDSN(path string) string {
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	return fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
}

func sqlitePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(p, "?"); i >= 0 {
		p = p[:i]
	}
	return p
}

// Migrate creates the schema if it does not exist yet.
func Migrate(conn *sql.DB, dialect Dialect) error {
	for _, stmt := range schema(dialect) {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}

func schema(d Dialect) []string {
	ts, real := "TIMESTAMPTZ", "DOUBLE PRECISION"
	if d == SQLite {
		ts, real = "DATETIME", "REAL"
	}
	r := strings.NewReplacer("{ts}", ts, "{real}", real)
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'operational',
			url TEXT,
			ip_address TEXT,
			port INTEGER,
			uptime_percentage {real} NOT NULL DEFAULT 100,
			position INTEGER NOT NULL DEFAULT 0,
			last_response_time_ms BIGINT,
			last_checked_at {ts},
			created_at {ts} NOT NULL,
			updated_at {ts} NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS health_check_results (
			id TEXT PRIMARY KEY,
			service_id TEXT NOT NULL REFERENCES services(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			response_time_ms BIGINT,
			status_code INTEGER,
			failure_reason TEXT,
			checked_at {ts} NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS uptime_history (
			service_id TEXT NOT NULL REFERENCES services(id) ON DELETE CASCADE,
			day TEXT NOT NULL,
			up_checks INTEGER NOT NULL,
			total_checks INTEGER NOT NULL,
			uptime_percentage {real} NOT NULL,
			avg_response_time_ms {real},
			PRIMARY KEY (service_id, day)
		);`,
		`CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			service_id TEXT REFERENCES services(id) ON DELETE SET NULL,
			author_id TEXT NOT NULL,
			created_at {ts} NOT NULL,
			updated_at {ts} NOT NULL,
			resolved_at {ts}
		);`,
		`CREATE TABLE IF NOT EXISTS incident_updates (
			id TEXT PRIMARY KEY,
			incident_id TEXT NOT NULL REFERENCES incidents(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			message TEXT NOT NULL,
			author_id TEXT NOT NULL,
			created_at {ts} NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scheduled_maintenances (
			id TEXT PRIMARY KEY,
			service_id TEXT REFERENCES services(id) ON DELETE SET NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			start_time {ts} NOT NULL,
			end_time {ts} NOT NULL,
			author_id TEXT NOT NULL,
			created_at {ts} NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'viewer',
			created_at {ts} NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_service_checked ON health_check_results(service_id, checked_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_results_checked ON health_check_results(checked_at);`,
		`CREATE INDEX IF NOT EXISTS idx_uptime_day ON uptime_history(day);`,
		`CREATE INDEX IF NOT EXISTS idx_incident_updates_incident ON incident_updates(incident_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_maintenances_end ON scheduled_maintenances(end_time);`,
	}
	for i, s := range stmts {
		stmts[i] = r.Replace(s)
	}
	return stmts
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
