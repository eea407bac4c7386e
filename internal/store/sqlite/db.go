// Package sqlite implements the pipeline's durable stores on SQLite.
// Every stage owns its own database file and is the only writer to it;
// downstream stages open the same file read-mostly.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const dsnParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"

// open opens path with WAL mode and a bounded pool. The parent directory is
// created if needed.
func open(path string, maxConns int) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("sqlite open %s: %w", path, err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping %s: %w", path, err)
	}
	return db, nil
}

// openWithSchema opens path and applies schema.
func openWithSchema(path, name string, schema string) (*sql.DB, error) {
	db, err := open(path, 1)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite %s schema: %w", name, err)
	}
	log.Printf("[sqlite] opened %s store at %s", name, path)
	return db, nil
}

// lastMinute scans a nullable MAX(time_minute) result.
func lastMinute(row *sql.Row) (string, error) {
	var ts sql.NullString
	if err := row.Scan(&ts); err != nil {
		return "", err
	}
	if !ts.Valid {
		return "", nil
	}
	return ts.String, nil
}

// rollback is used on error paths where the rollback error adds nothing.
func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
