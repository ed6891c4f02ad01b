// Package store owns the SQLite-backed index: schema migrations, the
// file/tag/attribute/link/collection/view tables, the derived FTS index,
// and the dirty-set used to reconcile watcher events against scans.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marlinhq/indexd/internal/ferr"
)

// Store wraps a single SQLite connection pool opened against one database
// file, fully migrated and pragma-tuned for a single-writer/many-reader
// daemon workload.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if absent) the SQLite database at path, applies the
// WAL/foreign-key/busy-timeout pragmas the rest of the package assumes are
// in effect, and runs any pending migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=30000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "open %s", path)
	}

	// A single SQLite connection pool cannot interleave writers across
	// goroutines on one *sql.DB without this: WAL allows readers to
	// proceed concurrently with a single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 30000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, ferr.Wrap(ferr.Database, err, "apply %q", pragma)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// Conn exposes the underlying *sql.DB for callers (the scanner, the
// control daemon's status handler) that need ad-hoc access beyond the
// operations this package exposes.
func (s *Store) Conn() *sql.DB { return s.db }

// Path returns the filesystem path this store was opened against.
func (s *Store) Path() string { return s.path }

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return ferr.Wrap(ferr.Database, err, "close store at %s", s.path)
	}
	return nil
}
