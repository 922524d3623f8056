// Package ledger records generation runs and their artifacts in SQLite so a
// run can be audited or reproduced from its seed.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/layerforge/internal/ledger/migrations"
	"github.com/ppiankov/layerforge/internal/model"
)

// ErrRunNotFound is returned when a run id does not exist
var ErrRunNotFound = errors.New("ledger: run not found")

// Run is one recorded generation run
type Run struct {
	ID          int64
	Project     string
	Seed        uint64
	Amount      int
	SpaceSize   uint64
	TotalWeight float64
	Average     float64
	OutputDir   string
	CreatedAt   time.Time
}

// Entry is one recorded artifact
type Entry struct {
	Number      int
	Name        string
	Combination string // Option keys joined by "|", configuration order
	Rarity      float64
	ImagePath   string
	ImageURI    string
}

// EntryFor builds the ledger entry of an artifact
func EntryFor(a *model.Artifact) Entry {
	return Entry{
		Number:      a.Number,
		Name:        a.Metadata.Name,
		Combination: a.Combination.Key(),
		Rarity:      a.Rarity,
		ImagePath:   a.ImagePath,
		ImageURI:    a.Metadata.Image,
	}
}

// Store is the SQLite-backed ledger
type Store struct {
	db *sql.DB
}

// Open opens the ledger database at path and applies migrations
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun inserts a run and returns its id
func (s *Store) RecordRun(ctx context.Context, run Run) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	run.Project = strings.TrimSpace(run.Project)
	if run.Project == "" {
		return 0, fmt.Errorf("project is required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO runs (
	project,
	seed,
	amount,
	space_size,
	total_weight,
	average,
	output_dir,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		run.Project,
		strconv.FormatUint(run.Seed, 10),
		run.Amount,
		strconv.FormatUint(run.SpaceSize, 10),
		run.TotalWeight,
		run.Average,
		run.OutputDir,
		run.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record run id: %w", err)
	}
	return id, nil
}

// RecordArtifacts inserts every entry for a run in one transaction
func (s *Store) RecordArtifacts(ctx context.Context, runID int64, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin artifacts: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO artifacts (run_id, number, name, combination, rarity, image_path, image_uri)
VALUES (?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare artifacts: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, runID, e.Number, e.Name, e.Combination, e.Rarity, e.ImagePath, e.ImageURI); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record artifact %d: %w", e.Number, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit artifacts: %w", err)
	}
	return nil
}

// UpdateImageURI sets the published image URI of one artifact
func (s *Store) UpdateImageURI(ctx context.Context, runID int64, number int, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET image_uri = ? WHERE run_id = ? AND number = ?`,
		uri, runID, number,
	)
	if err != nil {
		return fmt.Errorf("update image uri: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update image uri: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("artifact %d of run %d: %w", number, runID, ErrRunNotFound)
	}
	return nil
}

// ListRuns lists newest-first runs
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT
	id,
	project,
	seed,
	amount,
	space_size,
	total_weight,
	average,
	output_dir,
	created_at
FROM runs
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var run Run
		var seed, spaceSize string
		var createdAt int64
		if err := rows.Scan(
			&run.ID,
			&run.Project,
			&seed,
			&run.Amount,
			&spaceSize,
			&run.TotalWeight,
			&run.Average,
			&run.OutputDir,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, fmt.Errorf("parse seed of run %d: %w", run.ID, err)
		}
		if run.SpaceSize, err = strconv.ParseUint(spaceSize, 10, 64); err != nil {
			return nil, fmt.Errorf("parse space size of run %d: %w", run.ID, err)
		}
		run.CreatedAt = time.UnixMilli(createdAt).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Artifacts lists a run's artifacts in number order
func (s *Store) Artifacts(ctx context.Context, runID int64) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT number, name, combination, rarity, image_path, image_uri
FROM artifacts
WHERE run_id = ?
ORDER BY number
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Number, &e.Name, &e.Combination, &e.Rarity, &e.ImagePath, &e.ImageURI); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return entries, nil
}
