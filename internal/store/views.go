package store

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/marlinhq/indexd/internal/ferr"
)

// SaveView upserts a named saved search ("smart folder"): a short alias
// for a query string evaluated later through Search.
func (s *Store) SaveView(name, query string) error {
	_, err := qb.Insert("views").Columns("name", "query").Values(name, query).
		Suffix("ON CONFLICT(name) DO UPDATE SET query = excluded.query").
		RunWith(s.db).Exec()
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "save view %s", name)
	}
	return nil
}

// ListViews returns every saved view, alphabetically by name.
func (s *Store) ListViews() ([]View, error) {
	rows, err := qb.Select("name", "query").From("views").OrderBy("name").RunWith(s.db).Query()
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "list views")
	}
	defer rows.Close()

	var out []View
	for rows.Next() {
		var v View
		if err := rows.Scan(&v.Name, &v.Query); err != nil {
			return nil, ferr.Wrap(ferr.Database, err, "scan view row")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ViewQuery resolves a saved view's query string by name.
func (s *Store) ViewQuery(name string) (string, error) {
	var query string
	err := qb.Select("query").From("views").Where(sq.Eq{"name": name}).
		RunWith(s.db).QueryRow().Scan(&query)
	if err == sql.ErrNoRows {
		return "", ferr.New(ferr.NotFound, "no view named %q", name)
	}
	if err != nil {
		return "", ferr.Wrap(ferr.Database, err, "resolve view %q", name)
	}
	return query, nil
}

// DeleteView removes a saved view by name.
func (s *Store) DeleteView(name string) error {
	res, err := qb.Delete("views").Where(sq.Eq{"name": name}).RunWith(s.db).Exec()
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "delete view %q", name)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ferr.New(ferr.NotFound, "no view named %q", name)
	}
	return nil
}
