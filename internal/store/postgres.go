package store

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// NewPostgresDB connects to Postgres. The schema is owned by migrations
// (see ApplyMigrations); this only verifies connectivity.
func NewPostgresDB(dsn string) (*SQLStore, error) {
	d, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(); err != nil {
		d.Close()
		return nil, err
	}
	return newSQLStore(d, isPostgresUniqueViolation), nil
}

func isPostgresUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
