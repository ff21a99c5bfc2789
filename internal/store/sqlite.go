package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		inactive BOOLEAN NOT NULL DEFAULT 1,
		activation_token TEXT
	);`,
	`CREATE TABLE IF NOT EXISTS tokens (
		token TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		last_used_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS tokens_user_id_idx ON tokens(user_id);`,
}

// NewSQLiteDB opens (creating if needed) the SQLite database at path and
// ensures the schema exists.
func NewSQLiteDB(path string) (*SQLStore, error) {
	d, err := sqlx.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, err
	}
	for _, q := range sqliteSchema {
		if _, err := d.Exec(q); err != nil {
			d.Close()
			return nil, fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return newSQLStore(d, isSQLiteUniqueViolation), nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func isSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
