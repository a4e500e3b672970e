package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/hostprobe/internal/export"
	"github.com/HerbHall/hostprobe/internal/report"
	"github.com/tidwall/gjson"
)

// ErrRunNotFound is returned by Get for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

const archiveComponent = "archive"

func archiveMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "create runs table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE runs (
						id          TEXT PRIMARY KEY,
						started_at  TEXT NOT NULL,
						status      TEXT NOT NULL,
						subnet      TEXT NOT NULL DEFAULT '',
						digest      TEXT NOT NULL,
						output_path TEXT NOT NULL DEFAULT '',
						body        TEXT NOT NULL,
						archived_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)
				`)
				return err
			},
		},
		{
			Version:     2,
			Description: "index runs by start time",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec("CREATE INDEX idx_runs_started_at ON runs (started_at)")
				return err
			},
		},
	}
}

// RunRecord summarises one archived run.
type RunRecord struct {
	ID               string
	StartedAt        time.Time
	Status           report.Status
	Subnet           string
	Digest           string
	OutputPath       string
	SystemInfoItems  int
	NetworkInfoItems int
	ActiveHosts      int
}

// Archive stores every run's full report alongside its digest.
type Archive struct {
	store *SQLiteStore
}

// NewArchive migrates the archive schema on s.
func NewArchive(ctx context.Context, s *SQLiteStore) (*Archive, error) {
	if err := s.Migrate(ctx, archiveComponent, archiveMigrations()); err != nil {
		return nil, err
	}
	return &Archive{store: s}, nil
}

// Save archives r. outputPath records where the JSON export was written
// and may be empty. The digest is computed over the same encoding the
// export uses, so it matches the exported file.
func (a *Archive) Save(ctx context.Context, r *report.Report, outputPath string) (RunRecord, error) {
	body, err := export.Encode(r)
	if err != nil {
		return RunRecord{}, err
	}
	rec := recordFromBody(body)
	rec.ID = r.ID
	rec.StartedAt = r.Timestamp
	rec.Status = r.Status
	rec.Subnet = r.Subnet
	rec.Digest = export.Digest(body)
	rec.OutputPath = outputPath

	err = a.store.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, started_at, status, subnet, digest, output_path, body)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.StartedAt.UTC().Format(time.RFC3339Nano), string(rec.Status),
			rec.Subnet, rec.Digest, rec.OutputPath, string(body),
		)
		return err
	})
	if err != nil {
		return RunRecord{}, fmt.Errorf("archive run %s: %w", r.ID, err)
	}
	return rec, nil
}

// List returns the most recent runs first. limit <= 0 returns all runs.
func (a *Archive) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := a.store.DB().QueryContext(ctx, `
		SELECT id, started_at, status, subnet, digest, output_path, body
		FROM runs ORDER BY started_at DESC, archived_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			id, startedAt, status, subnet, digest, outputPath, body string
		)
		if err := rows.Scan(&id, &startedAt, &status, &subnet, &digest, &outputPath, &body); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec := recordFromBody([]byte(body))
		rec.ID = id
		rec.Status = report.Status(status)
		rec.Subnet = subnet
		rec.Digest = digest
		rec.OutputPath = outputPath
		if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			rec.StartedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns the archived report with the given ID.
func (a *Archive) Get(ctx context.Context, id string) (*report.Report, error) {
	var body string
	err := a.store.DB().QueryRowContext(ctx, "SELECT body FROM runs WHERE id = ?", id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	var r report.Report
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &r, nil
}

// recordFromBody reads the summary counts straight from the stored JSON.
func recordFromBody(body []byte) RunRecord {
	return RunRecord{
		SystemInfoItems:  len(gjson.GetBytes(body, "system_info").Map()),
		NetworkInfoItems: len(gjson.GetBytes(body, "network_info").Map()),
		ActiveHosts:      int(gjson.GetBytes(body, "active_hosts.#").Int()),
	}
}
