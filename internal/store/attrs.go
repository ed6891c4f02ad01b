package store

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/marlinhq/indexd/internal/ferr"
)

// SetAttr upserts a single key/value attribute on fileID.
func (s *Store) SetAttr(fileID int64, key, value string) error {
	_, err := qb.Insert("attributes").Columns("file_id", "key", "value").
		Values(fileID, key, value).
		Suffix("ON CONFLICT(file_id, key) DO UPDATE SET value = excluded.value").
		RunWith(s.db).Exec()
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "set attribute %s on file %d", key, fileID)
	}
	return nil
}

// DeleteAttr removes a single attribute key from fileID.
func (s *Store) DeleteAttr(fileID int64, key string) error {
	_, err := qb.Delete("attributes").
		Where(sq.Eq{"file_id": fileID, "key": key}).RunWith(s.db).Exec()
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "delete attribute %s on file %d", key, fileID)
	}
	return nil
}

// ListAttrs returns every key/value pair attached to fileID.
func (s *Store) ListAttrs(fileID int64) ([]Attribute, error) {
	rows, err := qb.Select("file_id", "key", "value").From("attributes").
		Where(sq.Eq{"file_id": fileID}).OrderBy("key").RunWith(s.db).Query()
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "list attributes for file %d", fileID)
	}
	defer rows.Close()

	var out []Attribute
	for rows.Next() {
		var a Attribute
		if err := rows.Scan(&a.FileID, &a.Key, &a.Value); err != nil {
			return nil, ferr.Wrap(ferr.Database, err, "scan attribute row")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
