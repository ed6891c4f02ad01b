package store

import (
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/marlinhq/indexd/internal/ferr"
)

// MarkDirty records that fileID's on-disk state may be stale, e.g. a
// watcher event landed mid-scan. Marking an already-dirty file just bumps
// its timestamp, so a burst of events collapses to one row.
func (s *Store) MarkDirty(fileID int64) error {
	_, err := qb.Insert("dirty_set").Columns("file_id", "marked_at").
		Values(fileID, time.Now().UTC().Format(time.RFC3339Nano)).
		Suffix("ON CONFLICT(file_id) DO UPDATE SET marked_at = excluded.marked_at").
		RunWith(s.db).Exec()
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "mark file %d dirty", fileID)
	}
	return nil
}

// ClearDirty removes fileID from the dirty set once it has been
// reconciled.
func (s *Store) ClearDirty(fileID int64) error {
	_, err := qb.Delete("dirty_set").Where(sq.Eq{"file_id": fileID}).RunWith(s.db).Exec()
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "clear dirty flag for file %d", fileID)
	}
	return nil
}

// ListDirty returns every dirty file's (id, path), oldest-marked first, for
// a reconciliation pass to drain.
func (s *Store) ListDirty() ([]File, error) {
	rows, err := s.db.Query(`
		SELECT f.id, f.path
		FROM dirty_set d
		JOIN files f ON f.id = d.file_id
		ORDER BY d.marked_at`)
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "list dirty files")
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.Path); err != nil {
			return nil, ferr.Wrap(ferr.Database, err, "scan dirty file row")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// TakeDirty atomically reads and clears the entire dirty set: the read and
// the delete happen inside one transaction, so a MarkDirty racing between
// them either lands entirely before this call (and is taken) or entirely
// after (and is left for the next call) -- it can never be silently
// dropped by a list-then-clear-by-id sequence observing a set that has
// since changed. Calling TakeDirty twice in succession returns the full
// set, then an empty one.
func (s *Store) TakeDirty() ([]File, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "begin take-dirty transaction")
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT f.id, f.path
		FROM dirty_set d
		JOIN files f ON f.id = d.file_id
		ORDER BY d.marked_at`)
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "list dirty files")
	}

	var out []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.Path); err != nil {
			rows.Close()
			return nil, ferr.Wrap(ferr.Database, err, "scan dirty file row")
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, ferr.Wrap(ferr.Database, err, "iterate dirty rows")
	}
	rows.Close()

	if _, err := tx.Exec("DELETE FROM dirty_set"); err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "clear dirty set")
	}
	if err := tx.Commit(); err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "commit take-dirty transaction")
	}
	return out, nil
}
