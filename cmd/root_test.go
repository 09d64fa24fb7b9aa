package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"playjelly/config"
	"playjelly/storage"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "check", "archive", "prune", "services:import", "admin:create"}
	for _, name := range want {
		c, _, err := rootCmd.Find([]string{name})
		if err != nil || c.Name() != name {
			t.Errorf("command %q not registered (got %v, %v)", name, c, err)
		}
	}
}

func TestNewBlobStoreDefaultsToFiles(t *testing.T) {
	cfg := config.Config{ArchiveDir: t.TempDir()}
	store, err := newBlobStore(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*storage.FileStore); !ok {
		t.Fatalf("store = %T, want *storage.FileStore", store)
	}
}

func TestNewAppWithSQLite(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite://"+filepath.Join(t.TempDir(), "app.db"))
	t.Setenv("ARCHIVE_BUCKET", "")
	t.Setenv("ARCHIVE_DIR", t.TempDir())
	t.Setenv("AUTH_ENABLED", "false")

	a, err := newApp(context.Background())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()
	summary, err := a.dispatcher.CheckAll(context.Background())
	if err != nil || summary.Checked != 0 {
		t.Fatalf("empty check = %+v %v", summary, err)
	}
}
