package store

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/marlinhq/indexd/internal/ferr"
)

// EnsureCollection creates name if it does not already exist and returns
// its id.
func (s *Store) EnsureCollection(name string) (int64, error) {
	if _, err := qb.Insert("collections").Columns("name").Values(name).
		Suffix("ON CONFLICT(name) DO NOTHING").RunWith(s.db).Exec(); err != nil {
		return 0, ferr.Wrap(ferr.Database, err, "create collection %s", name)
	}
	var id int64
	if err := qb.Select("id").From("collections").Where(sq.Eq{"name": name}).
		RunWith(s.db).QueryRow().Scan(&id); err != nil {
		return 0, ferr.Wrap(ferr.Database, err, "resolve collection %s", name)
	}
	return id, nil
}

// AddFileToCollection adds fileID to collectionID, a no-op if already a
// member.
func (s *Store) AddFileToCollection(collectionID, fileID int64) error {
	_, err := qb.Insert("collection_files").Columns("collection_id", "file_id").
		Values(collectionID, fileID).Suffix("ON CONFLICT(collection_id, file_id) DO NOTHING").
		RunWith(s.db).Exec()
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "add file %d to collection %d", fileID, collectionID)
	}
	return nil
}

// RemoveFileFromCollection removes fileID's membership in collectionID.
func (s *Store) RemoveFileFromCollection(collectionID, fileID int64) error {
	_, err := qb.Delete("collection_files").
		Where(sq.Eq{"collection_id": collectionID, "file_id": fileID}).RunWith(s.db).Exec()
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "remove file %d from collection %d", fileID, collectionID)
	}
	return nil
}

// ListCollection returns the paths of every file in the named collection,
// in path order.
func (s *Store) ListCollection(name string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT f.path
		FROM collections c
		JOIN collection_files cf ON cf.collection_id = c.id
		JOIN files f ON f.id = cf.file_id
		WHERE c.name = ?
		ORDER BY f.path`, name)
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "list collection %s", name)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, ferr.Wrap(ferr.Database, err, "scan collection member")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListCollections returns every collection name, alphabetically.
func (s *Store) ListCollections() ([]string, error) {
	rows, err := qb.Select("name").From("collections").OrderBy("name").RunWith(s.db).Query()
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "list collections")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, ferr.Wrap(ferr.Database, err, "scan collection name")
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
