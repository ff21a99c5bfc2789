// Package store persists users and session tokens. It ships a memory adapter,
// a SQLite adapter and a Postgres adapter behind the same Store interface.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when creating a user whose email is taken.
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserRepository stores accounts.
type UserRepository interface {
	// Create inserts u and sets u.ID.
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByActivationToken(ctx context.Context, token string) (*User, error)
	// Activate clears the inactive flag and the activation token.
	Activate(ctx context.Context, id int64) error
	UpdateUsername(ctx context.Context, id int64, username string) error
	Delete(ctx context.Context, id int64) error
	// ListActive returns active users ordered by id, skipping excludeID
	// (0 excludes nobody), together with the total number of matches.
	ListActive(ctx context.Context, excludeID int64, limit, offset int) (*Page, error)
}

// TokenRepository stores session tokens. Deleting or touching a token that
// does not exist is not an error.
type TokenRepository interface {
	Create(ctx context.Context, t *Token) error
	FindByToken(ctx context.Context, token string) (*Token, error)
	// Touch moves last_used_at forward to at; an older at is ignored.
	Touch(ctx context.Context, token string, at time.Time) error
	DeleteByToken(ctx context.Context, token string) error
	DeleteAllForUser(ctx context.Context, userID int64) error
	// DeleteUnusedSince removes every token last used at or before cutoff and
	// reports how many rows were removed.
	DeleteUnusedSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store bundles the repositories with a transaction boundary.
type Store interface {
	Users() UserRepository
	Tokens() TokenRepository
	// WithinTx runs fn in a transaction. Repository calls made with the ctx
	// passed to fn join the transaction. A non-nil error from fn rolls back.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error
	Close() error
}
