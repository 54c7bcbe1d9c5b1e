package relstore

import (
	"database/sql"
	"path/filepath"
	"testing"
)

const testSchema = `CREATE TABLE IF NOT EXISTS widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`

func TestOpenAndWithTx(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "t.db"), testSchema)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	err = db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO widgets (name) VALUES (?)`, "gear")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	var name string
	if err := db.QueryRow(`SELECT name FROM widgets WHERE id = 1`).Scan(&name); err != nil {
		t.Fatal(err)
	}
	if name != "gear" {
		t.Fatalf("got %q", name)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "t.db"), testSchema)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	wantErr := sql.ErrNoRows
	err = db.WithTx(func(tx *sql.Tx) error {
		tx.Exec(`INSERT INTO widgets (name) VALUES (?)`, "ghost")
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected propagated error, got %v", err)
	}

	var count int
	db.QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&count)
	if count != 0 {
		t.Fatalf("expected rollback, found %d rows", count)
	}
}

func TestSchemaIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	db1, err := Open(path, testSchema)
	if err != nil {
		t.Fatal(err)
	}
	db1.Close()

	db2, err := Open(path, testSchema)
	if err != nil {
		t.Fatalf("re-opening existing db with same schema should not error: %v", err)
	}
	defer db2.Close()
}
