package store

import (
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/marlinhq/indexd/internal/ferr"
)

// EnsureTagPath creates every segment of a slash-separated tag path that
// does not already exist and returns the id of the leaf segment. Segments
// are scoped by parent, so "Projects/Alpha" and "Docs/Alpha" are distinct
// tags that happen to share the name "Alpha".
func (s *Store) EnsureTagPath(path string) (int64, error) {
	var parent sql.NullInt64
	var leaf int64

	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		q := qb.Select("id").From("tags").Where(sq.Eq{"name": segment})
		if parent.Valid {
			q = q.Where(sq.Eq{"parent_id": parent.Int64})
		} else {
			q = q.Where("parent_id IS NULL")
		}
		err := q.RunWith(s.db).QueryRow().Scan(&leaf)
		if err == sql.ErrNoRows {
			res, insErr := qb.Insert("tags").Columns("name", "parent_id").
				Values(segment, parent).RunWith(s.db).Exec()
			if insErr != nil {
				return 0, ferr.Wrap(ferr.Database, insErr, "create tag segment %q", segment)
			}
			leaf, err = res.LastInsertId()
		}
		if err != nil {
			return 0, ferr.Wrap(ferr.Database, err, "resolve tag segment %q", segment)
		}
		parent = sql.NullInt64{Int64: leaf, Valid: true}
	}

	if !parent.Valid {
		return 0, ferr.New(ferr.Other, "empty tag path")
	}
	return leaf, nil
}

// tagAncestors walks a tag's parent chain up to (and including) its root,
// returning ids in leaf-to-root order.
func (s *Store) tagAncestors(tagID int64) ([]int64, error) {
	var chain []int64
	cur := tagID
	for {
		chain = append(chain, cur)
		var parent sql.NullInt64
		if err := qb.Select("parent_id").From("tags").Where(sq.Eq{"id": cur}).
			RunWith(s.db).QueryRow().Scan(&parent); err != nil {
			return nil, ferr.Wrap(ferr.Database, err, "walk tag ancestors from %d", tagID)
		}
		if !parent.Valid {
			return chain, nil
		}
		cur = parent.Int64
	}
}

// TagFile attaches tagPath's leaf tag to fileID, creating any missing
// segments, and transitively attaches every ancestor so that tags_text and
// tag-prefix search both see the full lineage.
func (s *Store) TagFile(fileID int64, tagPath string) error {
	leaf, err := s.EnsureTagPath(tagPath)
	if err != nil {
		return err
	}
	chain, err := s.tagAncestors(leaf)
	if err != nil {
		return err
	}
	for _, tagID := range chain {
		if _, err := qb.Insert("file_tags").Columns("file_id", "tag_id").
			Values(fileID, tagID).Suffix("ON CONFLICT(file_id, tag_id) DO NOTHING").
			RunWith(s.db).Exec(); err != nil {
			return ferr.Wrap(ferr.Database, err, "attach tag %d to file %d", tagID, fileID)
		}
	}
	return nil
}

// UntagFile detaches tagPath's leaf tag from fileID. Ancestors remain
// attached, since they may still be implied by other tags on the file.
func (s *Store) UntagFile(fileID int64, tagPath string) error {
	var leaf int64
	var parent sql.NullInt64
	for _, segment := range strings.Split(tagPath, "/") {
		if segment == "" {
			continue
		}
		q := qb.Select("id").From("tags").Where(sq.Eq{"name": segment})
		if parent.Valid {
			q = q.Where(sq.Eq{"parent_id": parent.Int64})
		} else {
			q = q.Where("parent_id IS NULL")
		}
		if err := q.RunWith(s.db).QueryRow().Scan(&leaf); err != nil {
			if err == sql.ErrNoRows {
				return ferr.New(ferr.NotFound, "tag not found: %s", tagPath)
			}
			return ferr.Wrap(ferr.Database, err, "resolve tag %q", tagPath)
		}
		parent = sql.NullInt64{Int64: leaf, Valid: true}
	}

	if _, err := qb.Delete("file_tags").
		Where(sq.Eq{"file_id": fileID, "tag_id": leaf}).RunWith(s.db).Exec(); err != nil {
		return ferr.Wrap(ferr.Database, err, "detach tag %s from file %d", tagPath, fileID)
	}
	return nil
}

// ListFileTags returns every tag path attached to fileID (including
// transitively-attached ancestors), in the order the file_tags rows come
// back; no particular order is guaranteed.
func (s *Store) ListFileTags(fileID int64) ([]string, error) {
	rows, err := qb.Select("tag_id").From("file_tags").
		Where(sq.Eq{"file_id": fileID}).RunWith(s.db).Query()
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "list tags for file %d", fileID)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, ferr.Wrap(ferr.Database, err, "scan tag id")
		}
		ids = append(ids, id)
	}
	rows.Close()

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		p, err := s.tagFullPath(id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) tagFullPath(tagID int64) (string, error) {
	chain, err := s.tagAncestors(tagID)
	if err != nil {
		return "", err
	}
	segs := make([]string, len(chain))
	for i, id := range chain {
		var name string
		if err := qb.Select("name").From("tags").Where(sq.Eq{"id": id}).
			RunWith(s.db).QueryRow().Scan(&name); err != nil {
			return "", ferr.Wrap(ferr.Database, err, "resolve name of tag %d", id)
		}
		segs[len(chain)-1-i] = name
	}
	return strings.Join(segs, "/"), nil
}
