package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/louisbranch/groupbuy-console/internal/services/console/credstore/kvtest"
)

func TestStoreBehavesAsKV(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kvtest.KV {
		return openTempStore(t)
	})
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestReopenKeepsValuesAndMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.sqlite")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Put("admin_remember", []byte(`{"username":"alice"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	_ = store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	value, ok, err := reopened.Get("admin_remember")
	if err != nil || !ok || string(value) != `{"username":"alice"}` {
		t.Fatalf("get after reopen = %q, %v, %v", value, ok, err)
	}
	var applied int
	if err := reopened.sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied migrations = %d, want 1", applied)
	}
}

func TestEmptyValueIsPresent(t *testing.T) {
	store := openTempStore(t)
	if err := store.Put("admin_token", nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, ok, err := store.Get("admin_token")
	if err != nil || !ok || len(value) != 0 {
		t.Fatalf("get empty = %q, %v, %v", value, ok, err)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "credentials.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
