// Package store persists completed runs in a local SQLite case archive.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/mod/semver"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// ErrNewerSchema is returned when the archive was written by a newer
// hostprobe than the running binary.
var ErrNewerSchema = errors.New("archive was created by a newer version of hostprobe")

// devVersion is the version of unreleased builds; it skips the version gate.
const devVersion = "dev"

// Migration is one forward-only schema change owned by a component.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// SQLiteStore is an open case archive database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes Migrate
}

// casePragmas favour durability: evidence is written once and must survive
// a crash of the collecting host.
var casePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=FULL",
	"PRAGMA foreign_keys=ON",
}

// Bookkeeping tables shared by every component.
var bookkeepingSchema = []string{`
	CREATE TABLE IF NOT EXISTS _migrations (
		component   TEXT     NOT NULL,
		version     INTEGER  NOT NULL,
		description TEXT     NOT NULL,
		applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (component, version)
	)`, `
	CREATE TABLE IF NOT EXISTS _archive_meta (
		id           INTEGER  PRIMARY KEY CHECK (id = 1),
		tool_version TEXT     NOT NULL,
		updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// New opens (or creates) the archive at path, applies the pragmas and
// creates the bookkeeping tables.
func New(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive %q: %w", path, err)
	}
	// One writer; WAL keeps readers unblocked.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open archive %q: %w", path, err)
	}
	// modernc.org/sqlite takes pragmas as statements, not DSN parameters.
	for _, stmt := range slices.Concat(casePragmas, bookkeepingSchema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("prepare archive %q: %w", path, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Tx runs fn in a transaction, committing on nil and rolling back otherwise.
func (s *SQLiteStore) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	return tx.Commit()
}

// AppliedVersions returns the migration versions recorded for component.
func (s *SQLiteStore) AppliedVersions(ctx context.Context, component string) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM _migrations WHERE component = ?", component)
	if err != nil {
		return nil, fmt.Errorf("read migrations of %s: %w", component, err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("read migrations of %s: %w", component, err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Migrate applies, in order, the migrations of component that are not yet
// recorded. Each migration runs in its own transaction together with its
// bookkeeping row.
func (s *SQLiteStore) Migrate(ctx context.Context, component string, migrations []Migration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied, err := s.AppliedVersions(ctx, component)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := s.Tx(ctx, func(tx *sql.Tx) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO _migrations (component, version, description) VALUES (?, ?, ?)",
				component, m.Version, m.Description)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s/%d (%s): %w", component, m.Version, m.Description, err)
		}
	}
	return nil
}

// CheckVersion refuses an archive last written by a newer hostprobe and
// otherwise records toolVersion as the archive's writer.
func (s *SQLiteStore) CheckVersion(ctx context.Context, toolVersion string) error {
	var stored string
	err := s.db.QueryRowContext(ctx, "SELECT tool_version FROM _archive_meta WHERE id = 1").Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read archive version: %w", err)
	case newerThan(stored, toolVersion):
		return fmt.Errorf("%w: archive=%s, binary=%s", ErrNewerSchema, stored, toolVersion)
	case stored == toolVersion:
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO _archive_meta (id, tool_version) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET tool_version = excluded.tool_version, updated_at = CURRENT_TIMESTAMP`,
		toolVersion)
	if err != nil {
		return fmt.Errorf("record archive version: %w", err)
	}
	return nil
}

// newerThan reports whether a is a strictly higher release than b. Dev
// builds and unparseable versions never compare as newer.
func newerThan(a, b string) bool {
	if a == devVersion || b == devVersion {
		return false
	}
	a, b = canonical(a), canonical(b)
	if !semver.IsValid(a) || !semver.IsValid(b) {
		return false
	}
	return semver.Compare(a, b) > 0
}

// canonical adds the "v" prefix semver expects.
func canonical(v string) string {
	if v != "" && v[0] != 'v' {
		return "v" + v
	}
	return v
}
