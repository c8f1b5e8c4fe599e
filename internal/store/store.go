package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SchemaVersion is written to the metadata table by Migrate.
const SchemaVersion = "1"

// Store is the SQLite data access layer for recorded synthesis runs.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates all tables and indexes and stamps the schema version. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := s.SetMetadata("schema_version", SchemaVersion); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
  id              TEXT PRIMARY KEY,
  strategy        TEXT NOT NULL,
  source          TEXT,
  status          TEXT NOT NULL,
  error           TEXT,
  events          INTEGER DEFAULT 0,
  calls           INTEGER DEFAULT 0,
  functions       INTEGER DEFAULT 0,
  pending         INTEGER DEFAULT 0,
  started_at      TIMESTAMP,
  finished_at     TIMESTAMP
);

CREATE TABLE IF NOT EXISTS functions (
  id              INTEGER PRIMARY KEY,
  run_id          TEXT NOT NULL REFERENCES runs(id),
  name            TEXT NOT NULL,
  file            TEXT NOT NULL,
  ordinal         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS calls (
  id              INTEGER PRIMARY KEY,
  function_id     INTEGER NOT NULL REFERENCES functions(id),
  seq             INTEGER NOT NULL,
  args            TEXT,
  return_value    TEXT
);

CREATE TABLE IF NOT EXISTS signatures (
  id              INTEGER PRIMARY KEY,
  function_id     INTEGER NOT NULL UNIQUE REFERENCES functions(id),
  arg_types       TEXT NOT NULL,
  return_types    TEXT NOT NULL,
  declaration     TEXT NOT NULL,
  signature_hash  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_functions_run ON functions(run_id);
CREATE INDEX IF NOT EXISTS idx_functions_name ON functions(name);
CREATE INDEX IF NOT EXISTS idx_calls_function ON calls(function_id);
CREATE INDEX IF NOT EXISTS idx_signatures_hash ON signatures(signature_hash);
`

// LastRunKey is the metadata key holding the most recently recorded run.
const LastRunKey = "last_run"

// SetMetadata upserts a metadata key.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

// Metadata returns the value stored under key, or "" when absent.
func (s *Store) Metadata(key string) (string, error) {
	var v sql.NullString
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("metadata %q: %w", key, err)
	}
	return v.String, nil
}

// DeleteRun transactionally removes a run and everything recorded for it.
// Deletes in reverse-dependency order to respect FK constraints. If the run
// was the latest, LastRunKey moves to the newest remaining run, or is
// cleared when none remain.
func (s *Store) DeleteRun(runID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT id FROM functions WHERE run_id = ?", runID)
	if err != nil {
		return fmt.Errorf("query functions: %w", err)
	}
	var fnIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan function id: %w", err)
		}
		fnIDs = append(fnIDs, id)
	}
	rows.Close()

	if len(fnIDs) > 0 {
		placeholders := placeholderList(len(fnIDs))
		args := int64sToArgs(fnIDs)
		for _, q := range []string{
			"DELETE FROM signatures WHERE function_id IN (" + placeholders + ")",
			"DELETE FROM calls WHERE function_id IN (" + placeholders + ")",
		} {
			if _, err := tx.Exec(q, args...); err != nil {
				return fmt.Errorf("delete function data: %w", err)
			}
		}
	}

	for _, q := range []string{
		"DELETE FROM functions WHERE run_id = ?",
		"DELETE FROM runs WHERE id = ?",
	} {
		if _, err := tx.Exec(q, runID); err != nil {
			return fmt.Errorf("delete run data: %w", err)
		}
	}

	if err := resetLastRun(tx, runID); err != nil {
		return err
	}

	return tx.Commit()
}

func resetLastRun(tx *sql.Tx, deleted string) error {
	var last sql.NullString
	err := tx.QueryRow("SELECT value FROM metadata WHERE key = ?", LastRunKey).Scan(&last)
	if err == sql.ErrNoRows || (err == nil && last.String != deleted) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("metadata %q: %w", LastRunKey, err)
	}

	var next string
	err = tx.QueryRow("SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1").Scan(&next)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.Exec("DELETE FROM metadata WHERE key = ?", LastRunKey)
	case err == nil:
		_, err = tx.Exec("UPDATE metadata SET value = ? WHERE key = ?", next, LastRunKey)
	}
	if err != nil {
		return fmt.Errorf("reset %q: %w", LastRunKey, err)
	}
	return nil
}
