package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLStore is the database/sql backed Store shared by the SQLite and Postgres
// adapters. Queries are written with '?' placeholders and rebound per driver.
type SQLStore struct {
	db       *sqlx.DB
	isUnique func(error) bool
}

type sqlTxKey struct{}

func newSQLStore(db *sqlx.DB, isUnique func(error) bool) *SQLStore {
	return &SQLStore{db: db, isUnique: isUnique}
}

func (s *SQLStore) Users() UserRepository   { return sqlUsers{s} }
func (s *SQLStore) Tokens() TokenRepository { return sqlTokens{s} }

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLStore) Close() error                   { return s.db.Close() }

// WithinTx begins a transaction, runs fn with a ctx carrying it, and commits on
// success or rolls back on error/panic. Panics are rethrown.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(sqlTxKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(context.WithValue(ctx, sqlTxKey{}, tx))
}

// ext returns the transaction bound to ctx, or the pool.
func (s *SQLStore) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(sqlTxKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return s.db
}

type sqlUsers struct{ s *SQLStore }

const userColumns = `id, username, email, password, inactive, activation_token`

func (r sqlUsers) Create(ctx context.Context, u *User) error {
	q := r.s.ext(ctx)
	query := q.Rebind(`INSERT INTO users (username, email, password, inactive, activation_token) VALUES (?, ?, ?, ?, ?) RETURNING id`)
	if err := q.QueryRowxContext(ctx, query, u.Username, u.Email, u.Password, u.Inactive, u.ActivationToken).Scan(&u.ID); err != nil {
		if r.s.isUnique(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r sqlUsers) get(ctx context.Context, where string, arg any) (*User, error) {
	q := r.s.ext(ctx)
	var u User
	if err := sqlx.GetContext(ctx, q, &u, q.Rebind(`SELECT `+userColumns+` FROM users WHERE `+where), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &u, nil
}

func (r sqlUsers) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.get(ctx, `id = ?`, id)
}

func (r sqlUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, `email = ?`, email)
}

func (r sqlUsers) FindByActivationToken(ctx context.Context, token string) (*User, error) {
	return r.get(ctx, `activation_token = ?`, token)
}

func (r sqlUsers) exec(ctx context.Context, query string, args ...any) error {
	q := r.s.ext(ctx)
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r sqlUsers) Activate(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE users SET inactive = ?, activation_token = NULL WHERE id = ?`, false, id)
}

func (r sqlUsers) UpdateUsername(ctx context.Context, id int64, username string) error {
	return r.exec(ctx, `UPDATE users SET username = ? WHERE id = ?`, username, id)
}

func (r sqlUsers) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
}

func (r sqlUsers) ListActive(ctx context.Context, excludeID int64, limit, offset int) (*Page, error) {
	q := r.s.ext(ctx)
	p := &Page{Users: []User{}}
	if err := sqlx.GetContext(ctx, q, &p.Total, q.Rebind(`SELECT COUNT(*) FROM users WHERE inactive = ? AND id <> ?`), false, excludeID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if offset < 0 {
		return p, nil
	}
	query := q.Rebind(`SELECT ` + userColumns + ` FROM users WHERE inactive = ? AND id <> ? ORDER BY id LIMIT ? OFFSET ?`)
	if err := sqlx.SelectContext(ctx, q, &p.Users, query, false, excludeID, limit, offset); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

type sqlTokens struct{ s *SQLStore }

// tokenRow stores last_used_at as unix nanoseconds so both drivers round-trip
// it without precision loss.
type tokenRow struct {
	Token      string `db:"token"`
	UserID     int64  `db:"user_id"`
	LastUsedAt int64  `db:"last_used_at"`
}

func (r sqlTokens) Create(ctx context.Context, t *Token) error {
	q := r.s.ext(ctx)
	query := q.Rebind(`INSERT INTO tokens (token, user_id, last_used_at) VALUES (?, ?, ?)`)
	if _, err := q.ExecContext(ctx, query, t.Token, t.UserID, t.LastUsedAt.UnixNano()); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r sqlTokens) FindByToken(ctx context.Context, token string) (*Token, error) {
	q := r.s.ext(ctx)
	var row tokenRow
	if err := sqlx.GetContext(ctx, q, &row, q.Rebind(`SELECT token, user_id, last_used_at FROM tokens WHERE token = ?`), token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &Token{Token: row.Token, UserID: row.UserID, LastUsedAt: time.Unix(0, row.LastUsedAt)}, nil
}

func (r sqlTokens) Touch(ctx context.Context, token string, at time.Time) error {
	q := r.s.ext(ctx)
	if _, err := q.ExecContext(ctx, q.Rebind(`UPDATE tokens SET last_used_at = ? WHERE token = ? AND last_used_at < ?`), at.UnixNano(), token, at.UnixNano()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r sqlTokens) DeleteByToken(ctx context.Context, token string) error {
	q := r.s.ext(ctx)
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM tokens WHERE token = ?`), token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r sqlTokens) DeleteAllForUser(ctx context.Context, userID int64) error {
	q := r.s.ext(ctx)
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM tokens WHERE user_id = ?`), userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r sqlTokens) DeleteUnusedSince(ctx context.Context, cutoff time.Time) (int64, error) {
	q := r.s.ext(ctx)
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM tokens WHERE last_used_at <= ?`), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
