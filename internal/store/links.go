package store

import (
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/marlinhq/indexd/internal/ferr"
)

// AddLink records a directed edge between two indexed files. typ may be
// empty, in which case it is treated as the untyped link between the pair.
func (s *Store) AddLink(srcFileID, dstFileID int64, typ string) error {
	_, err := qb.Insert("links").Columns("src_file_id", "dst_file_id", "type").
		Values(srcFileID, dstFileID, nullableString(typ)).
		Suffix("ON CONFLICT(src_file_id, dst_file_id, type) DO NOTHING").
		RunWith(s.db).Exec()
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "add link %d -> %d", srcFileID, dstFileID)
	}
	return nil
}

// RemoveLink deletes the edge between the two files of the given type.
func (s *Store) RemoveLink(srcFileID, dstFileID int64, typ string) error {
	_, err := qb.Delete("links").
		Where(sq.Eq{"src_file_id": srcFileID, "dst_file_id": dstFileID, "type": nullableString(typ)}).
		RunWith(s.db).Exec()
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "remove link %d -> %d", srcFileID, dstFileID)
	}
	return nil
}

// ListLinks returns the (path, linked path, type) triples for every file
// whose path matches pattern (a '*'-glob rewritten to SQL LIKE), in the
// given direction: "out" (default) follows src->dst, "in" follows dst->src.
func (s *Store) ListLinks(pattern, direction, typ string) ([]Link, error) {
	like := strings.ReplaceAll(pattern, "*", "%")
	srcCol, dstCol := "src_file_id", "dst_file_id"
	if direction == "in" {
		srcCol, dstCol = dstCol, srcCol
	}

	query := `
		SELECT f1.path, f2.path, l.type
		FROM files f1
		JOIN links l ON l.` + srcCol + ` = f1.id
		JOIN files f2 ON f2.id = l.` + dstCol + `
		WHERE f1.path LIKE ?`
	args := []any{like}
	if typ != "" {
		query += " AND l.type = ?"
		args = append(args, typ)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "list links matching %s", pattern)
	}
	defer rows.Close()

	var out []Link
	for rows.Next() {
		var l Link
		var t sql.NullString
		if err := rows.Scan(&l.SrcPath, &l.DstPath, &t); err != nil {
			return nil, ferr.Wrap(ferr.Database, err, "scan link row")
		}
		l.Type, l.HasType = t.String, t.Valid
		out = append(out, l)
	}
	return out, rows.Err()
}

// FindBacklinks returns every (source path, type) pair linking into a file
// whose path matches pattern.
func (s *Store) FindBacklinks(pattern string) ([]Link, error) {
	like := strings.ReplaceAll(pattern, "*", "%")
	rows, err := s.db.Query(`
		SELECT f1.path, f2.path, l.type
		FROM links l
		JOIN files f1 ON f1.id = l.src_file_id
		JOIN files f2 ON f2.id = l.dst_file_id
		WHERE f2.path LIKE ?`, like)
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "find backlinks matching %s", pattern)
	}
	defer rows.Close()

	var out []Link
	for rows.Next() {
		var l Link
		var t sql.NullString
		if err := rows.Scan(&l.SrcPath, &l.DstPath, &t); err != nil {
			return nil, ferr.Wrap(ferr.Database, err, "scan backlink row")
		}
		l.Type, l.HasType = t.String, t.Valid
		out = append(out, l)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
