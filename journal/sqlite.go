package journal

import "context"

// NewSQLite opens (or creates) the database file at path.
func NewSQLite(path string) (*DB, error) {
	j, err := Open(context.Background(), "sqlite3", path)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	j.db.SetMaxOpenConns(1)
	return j, nil
}
