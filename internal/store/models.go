package store

import "time"

// User represents a registered account
type User struct {
	ID              int64   `db:"id"`
	Username        string  `db:"username"`
	Email           string  `db:"email"`
	Password        string  `db:"password"` // bcrypt hash
	Inactive        bool    `db:"inactive"`
	ActivationToken *string `db:"activation_token"` // nil once activated
}

// Token represents an issued session token. LastUsedAt slides forward on
// every authenticated use.
type Token struct {
	Token      string
	UserID     int64
	LastUsedAt time.Time
}

// Page is a window over the active users.
type Page struct {
	Users []User
	Total int
}
