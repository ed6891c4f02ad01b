package store

import (
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/marlinhq/indexd/internal/ferr"
	"github.com/marlinhq/indexd/internal/pathutil"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// UpsertFile records path's current size/mtime/hash, inserting a new row
// or updating the existing one keyed by path. Returns the file's id.
func (s *Store) UpsertFile(path string, size, mtime int64, hash string) (int64, error) {
	path = pathutil.ToDBPath(path)
	_, err := qb.Insert("files").
		Columns("path", "size", "mtime", "hash").
		Values(path, size, mtime, hash).
		Suffix("ON CONFLICT(path) DO UPDATE SET size = excluded.size, mtime = excluded.mtime, hash = excluded.hash").
		RunWith(s.db).Exec()
	if err != nil {
		return 0, ferr.Wrap(ferr.Database, err, "upsert file %s", path)
	}
	return s.FileID(path)
}

// FileID resolves path to its file id, failing with ferr.NotFound if the
// path has never been indexed.
func (s *Store) FileID(path string) (int64, error) {
	path = pathutil.ToDBPath(path)
	var id int64
	err := qb.Select("id").From("files").Where(sq.Eq{"path": path}).
		RunWith(s.db).QueryRow().Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ferr.New(ferr.NotFound, "file not indexed: %s", path)
	}
	if err != nil {
		return 0, ferr.Wrap(ferr.Database, err, "resolve file id for %s", path)
	}
	return id, nil
}

// GetFile returns the full row for path.
func (s *Store) GetFile(path string) (*File, error) {
	path = pathutil.ToDBPath(path)
	f := &File{}
	var hash sql.NullString
	err := qb.Select("id", "path", "size", "mtime", "hash").From("files").
		Where(sq.Eq{"path": path}).RunWith(s.db).QueryRow().
		Scan(&f.ID, &f.Path, &f.Size, &f.Mtime, &hash)
	if err == sql.ErrNoRows {
		return nil, ferr.New(ferr.NotFound, "file not indexed: %s", path)
	}
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "read file %s", path)
	}
	f.Hash = hash.String
	return f, nil
}

// RenamePath updates a single file's path, e.g. after a reconstructed
// rename event. The FTS path column follows automatically via trigger.
// It reports the number of rows affected (0 if oldPath named a directory
// or otherwise matched no indexed file row, rather than an error), so a
// caller can fall back to RenamePrefix when a single-row rename misses.
func (s *Store) RenamePath(oldPath, newPath string) (int, error) {
	oldPath, newPath = pathutil.ToDBPath(oldPath), pathutil.ToDBPath(newPath)
	res, err := qb.Update("files").Set("path", newPath).
		Where(sq.Eq{"path": oldPath}).RunWith(s.db).Exec()
	if err != nil {
		return 0, ferr.Wrap(ferr.Database, err, "rename %s to %s", oldPath, newPath)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RenamePrefix rewrites every indexed path under oldDir (oldDir itself and
// its descendants) to live under newDir instead, for a directory rename
// the watcher observed as one event on the directory rather than one event
// per contained file. Every rewritten file is also marked dirty in the
// same transaction, per spec §4.C's "directory rename marks every touched
// file dirty" -- a reconciliation pass needs to know these rows moved
// even though their content didn't change.
func (s *Store) RenamePrefix(oldDir, newDir string) (int, error) {
	oldDir, newDir = pathutil.ToDBPath(oldDir), pathutil.ToDBPath(newDir)

	rows, err := qb.Select("id", "path").From("files").
		Where(sq.Like{"path": oldDir + "%"}).RunWith(s.db).Query()
	if err != nil {
		return 0, ferr.Wrap(ferr.Database, err, "scan files under %s", oldDir)
	}
	type hit struct {
		id   int64
		path string
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.id, &h.path); err != nil {
			rows.Close()
			return 0, ferr.Wrap(ferr.Database, err, "scan candidate rename row")
		}
		if pathutil.HasPathPrefix(h.path, oldDir) {
			hits = append(hits, h)
		}
	}
	rows.Close()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, ferr.Wrap(ferr.Database, err, "begin rename-prefix transaction")
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, h := range hits {
		rewritten := newDir + h.path[len(oldDir):]
		if _, err := qb.Update("files").Set("path", rewritten).
			Where(sq.Eq{"id": h.id}).RunWith(tx).Exec(); err != nil {
			return 0, ferr.Wrap(ferr.Database, err, "rewrite path for file id %d", h.id)
		}
		if _, err := qb.Insert("dirty_set").Columns("file_id", "marked_at").
			Values(h.id, now).
			Suffix("ON CONFLICT(file_id) DO UPDATE SET marked_at = excluded.marked_at").
			RunWith(tx).Exec(); err != nil {
			return 0, ferr.Wrap(ferr.Database, err, "mark file id %d dirty after rename", h.id)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, ferr.Wrap(ferr.Database, err, "commit rename-prefix transaction")
	}
	return len(hits), nil
}

// DeleteFile removes path and cascades to its tags, attributes, links,
// collection membership and dirty-set entry.
func (s *Store) DeleteFile(path string) error {
	path = pathutil.ToDBPath(path)
	res, err := qb.Delete("files").Where(sq.Eq{"path": path}).RunWith(s.db).Exec()
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "delete file %s", path)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ferr.New(ferr.NotFound, "file not indexed: %s", path)
	}
	return nil
}

// DeletePrefix removes every indexed path equal to or descending from dir,
// used when a watched directory itself is deleted.
func (s *Store) DeletePrefix(dir string) (int, error) {
	dir = pathutil.ToDBPath(dir)
	rows, err := qb.Select("id", "path").From("files").
		Where(sq.Like{"path": dir + "%"}).RunWith(s.db).Query()
	if err != nil {
		return 0, ferr.Wrap(ferr.Database, err, "scan files under %s", dir)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close()
			return 0, ferr.Wrap(ferr.Database, err, "scan candidate delete row")
		}
		if pathutil.HasPathPrefix(path, dir) {
			ids = append(ids, id)
		}
	}
	rows.Close()

	for _, id := range ids {
		if _, err := qb.Delete("files").Where(sq.Eq{"id": id}).RunWith(s.db).Exec(); err != nil {
			return 0, ferr.Wrap(ferr.Database, err, "delete file id %d", id)
		}
	}
	return len(ids), nil
}

// ListFilesUnderPrefix lists indexed paths equal to or descending from dir,
// in path order.
func (s *Store) ListFilesUnderPrefix(dir string) ([]string, error) {
	dir = pathutil.ToDBPath(dir)
	rows, err := qb.Select("path").From("files").
		Where(sq.Like{"path": dir + "%"}).OrderBy("path").RunWith(s.db).Query()
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "list files under %s", dir)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, ferr.Wrap(ferr.Database, err, "scan path under %s", dir)
		}
		if pathutil.HasPathPrefix(p, dir) {
			out = append(out, p)
		}
	}
	return out, rows.Err()
}
