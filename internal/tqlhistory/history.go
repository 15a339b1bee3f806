// Package tqlhistory is the persistent query-history store: a dedicated
// SQLite file, migrated with goose, that records the SQL statements the
// session runs from the prompt. Writes are best-effort — a failure to persist logs a
// warning and never breaks the REPL.
package tqlhistory

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/mrorigo/tuiql/internal/obslog"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Entry is one row of the history table.
type Entry struct {
	ID           int64
	DatabaseName string
	Query        string
	ExecutedAt   time.Time
	DurationMS   int64
	Success      bool
	ErrorMessage string
}

// Store wraps the history database handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the history file at path and brings
// its schema up to date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

// Add appends an entry. Failure is logged and swallowed: a history-store
// outage must never abort the statement the user actually cares about.
func (s *Store) Add(e Entry) {
	_, err := s.db.Exec(
		`INSERT INTO query_history(database_name, query, executed_at, duration_ms, success, error_message)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.DatabaseName, e.Query, e.ExecutedAt.UTC().Format(time.RFC3339), e.DurationMS, boolToInt(e.Success), e.ErrorMessage,
	)
	if err != nil {
		obslog.Log.Warn().Err(err).Msg("failed to persist history entry")
	}
}

// Recent returns the most recent entries for db (all databases if empty),
// newest first, bounded by limit.
func (s *Store) Recent(db string, limit int) ([]Entry, error) {
	query := `SELECT id, database_name, query, executed_at, duration_ms, success, error_message
	          FROM query_history`
	args := []interface{}{}
	if db != "" {
		query += " WHERE database_name = ?"
		args = append(args, db)
	}
	query += " ORDER BY executed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var executedAt string
		var success int
		var errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.DatabaseName, &e.Query, &executedAt, &e.DurationMS, &success, &errMsg); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.ExecutedAt, _ = time.Parse(time.RFC3339, executedAt)
		e.Success = success != 0
		e.ErrorMessage = errMsg.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear removes history for db (all databases if empty).
func (s *Store) Clear(db string) error {
	if db == "" {
		_, err := s.db.Exec("DELETE FROM query_history")
		return err
	}
	_, err := s.db.Exec("DELETE FROM query_history WHERE database_name = ?", db)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
