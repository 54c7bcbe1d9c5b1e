// Package relstore is the C1 relational storage primitive: a small
// embedded SQLite store shared by the Trust Engine (C3) and Governance
// Service (C7) stores.
//
// Grounded on internal/memory/db.go's NewMemoryDB/migrate/withTx
// pattern (go:embed schema, sql.Open, WAL + busy-timeout pragmas,
// transaction-wrapped read-modify-write), adapted to modernc.org/sqlite's
// pure-Go driver (registered as "sqlite") in place of the teacher's
// CGO-based mattn/go-sqlite3 (see DESIGN.md for why).
package relstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a single SQLite connection used by one relational substrate
// (Trust store, Governance store, ...).
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if absent) the SQLite database at path with the
// teacher's own WAL + busy-timeout + foreign-keys pragmas, then executes
// schemaSQL (expected to be idempotent CREATE TABLE IF NOT EXISTS DDL).
func Open(path, schemaSQL string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating relstore directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening relstore %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1) // single-writer substrate, spec.md section 5
	sqlDB.SetConnMaxLifetime(0)

	db := &DB{DB: sqlDB, path: path}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("executing relstore schema: %w", err)
	}
	return db, nil
}

// WithTx executes fn inside a transaction, rolling back on error and
// committing otherwise, matching internal/memory/db.go's withTx idiom.
func (d *DB) WithTx(fn func(tx *sql.Tx) error) error {
	tx, err := d.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// NullString converts an empty string to sql.NullString (teacher idiom,
// internal/memory/db.go).
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NullTime converts a nil time pointer to sql.NullTime.
func NullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// TimeOrNil converts an sql.NullTime back to a *time.Time.
func TimeOrNil(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
