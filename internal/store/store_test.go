package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempDB(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New(%q): %v", path, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_creates_database(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNew_invalid_path(t *testing.T) {
	_, err := New("/nonexistent/path/to/db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestTx_rollback(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	if _, err := s.DB().ExecContext(ctx, "CREATE TABLE evidence (id INTEGER PRIMARY KEY, label TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	err := s.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO evidence (id, label) VALUES (1, 'Hostname')"); err != nil {
			return err
		}
		return sql.ErrNoRows
	})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}

	var count int
	if err := s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM evidence").Scan(&count); err != nil {
		t.Fatalf("count after rollback: %v", err)
	}
	if count != 0 {
		t.Errorf("got count %d after rollback, want 0", count)
	}
}

func TestMigrate_skips_applied(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	calls := 0
	migrations := []Migration{{
		Version:     1,
		Description: "create table",
		Up: func(tx *sql.Tx) error {
			calls++
			_, err := tx.Exec("CREATE TABLE t1 (id INTEGER PRIMARY KEY)")
			return err
		},
	}}

	for i := 0; i < 2; i++ {
		if err := s.Migrate(ctx, "archive", migrations); err != nil {
			t.Fatalf("Migrate #%d: %v", i+1, err)
		}
	}
	if calls != 1 {
		t.Errorf("Up called %d times, want 1", calls)
	}
}

func TestMigrate_failure_rolls_back(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	err := s.Migrate(ctx, "archive", []Migration{{
		Version:     1,
		Description: "broken",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec("CREATE TABLE half (id INTEGER)"); err != nil {
				return err
			}
			_, err := tx.Exec("NOT VALID SQL")
			return err
		},
	}})
	if err == nil {
		t.Fatal("expected migration error")
	}

	var name string
	err = s.DB().QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='half'").Scan(&name)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("table from failed migration should not exist, got %q (%v)", name, err)
	}
}

func TestAppliedVersions(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	noop := func(*sql.Tx) error { return nil }
	err := s.Migrate(ctx, "archive", []Migration{
		{Version: 1, Description: "one", Up: noop},
		{Version: 2, Description: "two", Up: noop},
	})
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	got, err := s.AppliedVersions(ctx, "archive")
	if err != nil {
		t.Fatalf("AppliedVersions: %v", err)
	}
	if len(got) != 2 || !got[1] || !got[2] {
		t.Errorf("AppliedVersions = %v, want versions 1 and 2", got)
	}

	other, err := s.AppliedVersions(ctx, "metrics")
	if err != nil {
		t.Fatalf("AppliedVersions(other): %v", err)
	}
	if len(other) != 0 {
		t.Errorf("versions leaked across components: %v", other)
	}
}

func TestNewerThan(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"1.3.0", "1.2.9", true},
		{"v1.2.0", "1.2.0", false},
		{"1.2.0", "1.3.0", false},
		{"dev", "1.0.0", false},
		{"1.0.0", "dev", false},
		{"garbage", "1.0.0", false},
	}
	for _, tc := range tests {
		if got := newerThan(tc.a, tc.b); got != tc.want {
			t.Errorf("newerThan(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestWAL_mode_enabled(t *testing.T) {
	s := tempDB(t)
	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestCheckVersion(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	if err := s.CheckVersion(ctx, "1.2.0"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := s.CheckVersion(ctx, "1.2.0"); err != nil {
		t.Fatalf("same version: %v", err)
	}
	if err := s.CheckVersion(ctx, "v1.3.1"); err != nil {
		t.Fatalf("newer binary: %v", err)
	}
	if err := s.CheckVersion(ctx, "1.2.9"); !errors.Is(err, ErrNewerSchema) {
		t.Fatalf("older binary: got %v, want ErrNewerSchema", err)
	}
	if err := s.CheckVersion(ctx, "dev"); err != nil {
		t.Fatalf("dev binary: %v", err)
	}
}
