package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNoRuns is returned by LatestRun on an empty database.
var ErrNoRuns = errors.New("no runs recorded")

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStore struct {
	db *sql.DB
}

var _ ReportStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT,
			finished_at TEXT,
			versions JSON,
			warnings INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS definitions (
			run_id TEXT,
			def_id INTEGER,
			kind TEXT,
			name TEXT,
			signature TEXT,
			public_name TEXT,
			namespaced_name TEXT,
			origin TEXT,
			PRIMARY KEY (run_id, def_id)
		);`,
		`CREATE TABLE IF NOT EXISTS links (
			run_id TEXT,
			def_id INTEGER,
			version TEXT,
			version_pos INTEGER,
			position INTEGER,
			category TEXT,
			url TEXT,
			PRIMARY KEY (run_id, def_id, version, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_definitions_name ON definitions(run_id, name);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	versions, err := json.Marshal(run.Versions)
	if err != nil {
		return err
	}
	versionPos := make(map[string]int, len(run.Versions))
	for i, v := range run.Versions {
		versionPos[v] = i
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, versions, warnings)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout), string(versions), run.Warnings)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	defStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO definitions (run_id, def_id, kind, name, signature, public_name, namespaced_name, origin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer defStmt.Close()

	linkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO links (run_id, def_id, version, version_pos, position, category, url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer linkStmt.Close()

	for _, d := range run.Definitions {
		if _, err := defStmt.ExecContext(ctx, run.ID, d.DefID, d.Kind, d.Name, d.Signature, d.PublicName, d.NamespacedName, d.Origin); err != nil {
			return fmt.Errorf("insert definition %s: %w", d.Name, err)
		}
		for _, l := range d.Links {
			if _, err := linkStmt.ExecContext(ctx, run.ID, d.DefID, l.Version, versionPos[l.Version], l.Position, l.Category, l.URL); err != nil {
				return fmt.Errorf("insert link for %s: %w", d.Name, err)
			}
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}
	return id, err
}

func (s *SQLiteStore) LoadLinks(ctx context.Context, runID, name string) ([]LinkRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.kind, d.name, COALESCE(NULLIF(d.namespaced_name, ''), d.public_name), l.version, l.category, l.url
		FROM links l
		JOIN definitions d ON d.run_id = l.run_id AND d.def_id = l.def_id
		WHERE l.run_id = ? AND (? = '' OR d.name = ? OR d.public_name = ? OR d.namespaced_name = ?)
		ORDER BY l.def_id, l.version_pos, l.position
	`, runID, name, name, name, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LinkRow
	for rows.Next() {
		var r LinkRow
		if err := rows.Scan(&r.Kind, &r.Name, &r.Public, &r.Version, &r.Category, &r.URL); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
