package data

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func TestNewDB(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "praxis.db")

		store, err := NewDB(dbPath)
		if err != nil {
			t.Fatalf("NewDB failed: %v", err)
		}
		defer store.Close()

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file not created")
		}
		if err := store.Health(); err != nil {
			t.Errorf("health check failed: %v", err)
		}
	})

	t.Run("creates nested directory structure", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "deep", "nested", "praxis.db")

		store, err := NewDB(dbPath)
		if err != nil {
			t.Fatalf("NewDB with nested dir failed: %v", err)
		}
		defer store.Close()

		if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
			t.Error("nested directory not created")
		}
	})

	t.Run("in-memory database", func(t *testing.T) {
		store, err := NewDB(":memory:")
		if err != nil {
			t.Fatalf("NewDB(:memory:) failed: %v", err)
		}
		defer store.Close()

		if err := store.Health(); err != nil {
			t.Errorf("health check failed: %v", err)
		}
	})

	t.Run("idempotent migrations", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "praxis.db")

		store1, err := NewDB(dbPath)
		if err != nil {
			t.Fatalf("first NewDB failed: %v", err)
		}
		store1.Close()

		store2, err := NewDB(dbPath)
		if err != nil {
			t.Fatalf("second NewDB failed: %v", err)
		}
		defer store2.Close()

		if err := store2.Health(); err != nil {
			t.Errorf("health check after re-migration failed: %v", err)
		}
	})
}

func TestSchemaTables(t *testing.T) {
	store, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	defer store.Close()

	for _, table := range []string{"personas", "mood_observations", "corrections"} {
		var name string
		err := store.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after migration: %v", table, err)
		}
	}
}

func TestWithTx(t *testing.T) {
	store, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	t.Run("commit on success", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO personas (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
				"p-tx-1", "Tx Test", 0, 0)
			return err
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}

		var count int
		if err := store.DB().QueryRow("SELECT COUNT(*) FROM personas WHERE id = 'p-tx-1'").Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Errorf("expected committed row, got count %d", count)
		}
	})

	t.Run("rollback on error", func(t *testing.T) {
		wantErr := os.ErrInvalid
		err := store.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO personas (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
				"p-tx-2", "Rollback Test", 0, 0); err != nil {
				return err
			}
			return wantErr
		})
		if err != wantErr {
			t.Fatalf("expected propagated error, got %v", err)
		}

		var count int
		if err := store.DB().QueryRow("SELECT COUNT(*) FROM personas WHERE id = 'p-tx-2'").Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Errorf("expected rollback, found %d rows", count)
		}
	})
}

func TestSplitSQL(t *testing.T) {
	input := `-- comment line
CREATE TABLE a (id TEXT);

-- another comment
CREATE INDEX idx_a ON a(id);
`
	stmts := splitSQL(input)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %#v", len(stmts), stmts)
	}
}
