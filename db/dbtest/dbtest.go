// Package dbtest opens throwaway SQLite repositories for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"playjelly/db"
	"playjelly/events"
)

// New returns a migrated repository backed by a fresh SQLite file under
// t.TempDir(). broker may be nil.
func New(t testing.TB, broker *events.Broker) *db.Repository {
	t.Helper()
	conn, dialect, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.Migrate(conn, dialect); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db.NewRepository(conn, dialect, broker)
}
