package history

// The edit journal: one row per value changed by a save, so an edit can be looked up
// (and undone by hand) long after the backup files have been cleaned up.

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"d2sedit/types"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Entry is one journal row.
type Entry struct {
	ID      string
	File    string
	What    string
	Old     uint32
	New     uint32
	SavedAt time.Time
}

func (e Entry) String() string {
	return fmt.Sprintf("%v  %v  %v: %v -> %v", e.SavedAt.Local().Format("2006-01-02 15:04:05"), filepath.Base(e.File), e.What, e.Old, e.New)
}

// Open opens (creating if necessary) the journal database at path.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to get user_version: %w", err)
	}

	// Migration 0 -> 1: Initial schema
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS edits (
		  id        TEXT PRIMARY KEY,
		  file      TEXT NOT NULL,
		  what      TEXT NOT NULL,
		  old_value INTEGER NOT NULL,
		  new_value INTEGER NOT NULL,
		  saved_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_edits_file_saved
		ON edits(file, saved_at DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", 1)); err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
	}

	return nil
}

// Record journals the changes made to file by one save, all or nothing.
func Record(ctx context.Context, db *sql.DB, file string, changes []types.Change, now time.Time) ([]Entry, error) {
	if len(changes) == 0 {
		return nil, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO edits (id, file, what, old_value, new_value, saved_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	entropy := ulid.Monotonic(rand.Reader, 0)
	out := make([]Entry, 0, len(changes))
	for _, c := range changes {
		id, err := ulid.New(ulid.Timestamp(now), entropy)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ID: %w", err)
		}
		e := Entry{ID: id.String(), File: file, What: c.What, Old: c.Old, New: c.New, SavedAt: now}
		if _, err := stmt.ExecContext(ctx, e.ID, e.File, e.What, int64(e.Old), int64(e.New), now.UnixMilli()); err != nil {
			return nil, fmt.Errorf("failed to record %v: %w", c, err)
		}
		out = append(out, e)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns journal entries, newest first.  An empty file lists every file; limit <= 0 means no limit.
func List(ctx context.Context, db *sql.DB, file string, limit int) ([]Entry, error) {
	query := `SELECT id, file, what, old_value, new_value, saved_at FROM edits`
	args := []any{}
	if file != "" {
		query += ` WHERE file = ?`
		args = append(args, file)
	}
	// ULIDs are time ordered and monotonic within a save, so they break saved_at ties correctly
	query += ` ORDER BY saved_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		var oldValue, newValue, savedAt int64
		if err := rows.Scan(&e.ID, &e.File, &e.What, &oldValue, &newValue, &savedAt); err != nil {
			return nil, err
		}
		e.Old = uint32(oldValue)
		e.New = uint32(newValue)
		e.SavedAt = time.UnixMilli(savedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
