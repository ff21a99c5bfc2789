package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the Store contract against one adapter.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	addUser := func(t *testing.T, s Store, name string, inactive bool) *User {
		t.Helper()
		tok := "act-" + name
		u := &User{Username: name, Email: name + "@mail.com", Password: "hash", Inactive: inactive, ActivationToken: &tok}
		require.NoError(t, s.Users().Create(ctx, u))
		require.NotZero(t, u.ID)
		return u
	}

	t.Run("create and find user", func(t *testing.T) {
		s := newStore(t)
		u := addUser(t, s, "user1", true)

		got, err := s.Users().FindByEmail(ctx, "user1@mail.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "user1", got.Username)
		assert.True(t, got.Inactive)
		require.NotNil(t, got.ActivationToken)
		assert.Equal(t, "act-user1", *got.ActivationToken)

		got, err = s.Users().FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Email, got.Email)

		_, err = s.Users().FindByEmail(ctx, "USER1@mail.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		s := newStore(t)
		addUser(t, s, "user1", true)
		err := s.Users().Create(ctx, &User{Username: "other", Email: "user1@mail.com", Password: "x"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("activate", func(t *testing.T) {
		s := newStore(t)
		u := addUser(t, s, "user1", true)

		found, err := s.Users().FindByActivationToken(ctx, "act-user1")
		require.NoError(t, err)
		require.Equal(t, u.ID, found.ID)

		require.NoError(t, s.Users().Activate(ctx, u.ID))
		got, err := s.Users().FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, got.Inactive)
		assert.Nil(t, got.ActivationToken)

		_, err = s.Users().FindByActivationToken(ctx, "act-user1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update and delete", func(t *testing.T) {
		s := newStore(t)
		u := addUser(t, s, "user1", false)

		require.NoError(t, s.Users().UpdateUsername(ctx, u.ID, "renamed"))
		got, err := s.Users().FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Username)

		require.NoError(t, s.Users().Delete(ctx, u.ID))
		_, err = s.Users().FindByID(ctx, u.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Users().Delete(ctx, u.ID), ErrNotFound)
		assert.ErrorIs(t, s.Users().UpdateUsername(ctx, u.ID, "x"), ErrNotFound)
	})

	t.Run("list active users", func(t *testing.T) {
		s := newStore(t)
		var first *User
		for i := 0; i < 15; i++ {
			u := addUser(t, s, fmt.Sprintf("active%d", i), false)
			if first == nil {
				first = u
			}
		}
		for i := 0; i < 7; i++ {
			addUser(t, s, fmt.Sprintf("inactive%d", i), true)
		}

		p, err := s.Users().ListActive(ctx, 0, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 15, p.Total)
		assert.Len(t, p.Users, 10)
		assert.Equal(t, first.ID, p.Users[0].ID)

		p, err = s.Users().ListActive(ctx, 0, 10, 10)
		require.NoError(t, err)
		assert.Len(t, p.Users, 5)

		p, err = s.Users().ListActive(ctx, first.ID, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 14, p.Total)
		for _, u := range p.Users {
			assert.NotEqual(t, first.ID, u.ID)
			assert.False(t, u.Inactive)
		}

		p, err = s.Users().ListActive(ctx, 0, 10, 100)
		require.NoError(t, err)
		assert.Empty(t, p.Users)
		assert.NotNil(t, p.Users)

		p, err = s.Users().ListActive(ctx, 0, 10, -10)
		require.NoError(t, err)
		assert.Equal(t, 15, p.Total)
		assert.Empty(t, p.Users)
	})

	t.Run("token lifecycle", func(t *testing.T) {
		s := newStore(t)
		u := addUser(t, s, "user1", false)
		used := time.Unix(0, 1_700_000_000_123_456_789)

		require.NoError(t, s.Tokens().Create(ctx, &Token{Token: "a", UserID: u.ID, LastUsedAt: used}))
		require.NoError(t, s.Tokens().Create(ctx, &Token{Token: "b", UserID: u.ID, LastUsedAt: used}))

		got, err := s.Tokens().FindByToken(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.UserID)
		assert.True(t, got.LastUsedAt.Equal(used))

		later := used.Add(time.Millisecond)
		require.NoError(t, s.Tokens().Touch(ctx, "a", later))
		got, err = s.Tokens().FindByToken(ctx, "a")
		require.NoError(t, err)
		assert.True(t, got.LastUsedAt.Equal(later))

		require.NoError(t, s.Tokens().DeleteByToken(ctx, "a"))
		_, err = s.Tokens().FindByToken(ctx, "a")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Tokens().FindByToken(ctx, "b")
		assert.NoError(t, err)

		// missing rows are no-ops
		assert.NoError(t, s.Tokens().DeleteByToken(ctx, "a"))
		assert.NoError(t, s.Tokens().Touch(ctx, "a", later))

		// a late refresh never moves last_used_at backwards
		require.NoError(t, s.Tokens().Touch(ctx, "b", later))
		require.NoError(t, s.Tokens().Touch(ctx, "b", used))
		got, err = s.Tokens().FindByToken(ctx, "b")
		require.NoError(t, err)
		assert.True(t, got.LastUsedAt.Equal(later))
	})

	t.Run("delete all tokens for user", func(t *testing.T) {
		s := newStore(t)
		u1 := addUser(t, s, "user1", false)
		u2 := addUser(t, s, "user2", false)
		now := time.Now()
		for _, tok := range []string{"a", "b", "c"} {
			require.NoError(t, s.Tokens().Create(ctx, &Token{Token: tok, UserID: u1.ID, LastUsedAt: now}))
		}
		require.NoError(t, s.Tokens().Create(ctx, &Token{Token: "d", UserID: u2.ID, LastUsedAt: now}))

		require.NoError(t, s.Tokens().DeleteAllForUser(ctx, u1.ID))
		for _, tok := range []string{"a", "b", "c"} {
			_, err := s.Tokens().FindByToken(ctx, tok)
			assert.ErrorIs(t, err, ErrNotFound)
		}
		_, err := s.Tokens().FindByToken(ctx, "d")
		assert.NoError(t, err)
	})

	t.Run("delete unused since", func(t *testing.T) {
		s := newStore(t)
		u := addUser(t, s, "user1", false)
		cutoff := time.Now()
		require.NoError(t, s.Tokens().Create(ctx, &Token{Token: "old", UserID: u.ID, LastUsedAt: cutoff.Add(-time.Hour)}))
		require.NoError(t, s.Tokens().Create(ctx, &Token{Token: "edge", UserID: u.ID, LastUsedAt: cutoff}))
		require.NoError(t, s.Tokens().Create(ctx, &Token{Token: "fresh", UserID: u.ID, LastUsedAt: cutoff.Add(time.Nanosecond)}))

		n, err := s.Tokens().DeleteUnusedSince(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		_, err = s.Tokens().FindByToken(ctx, "fresh")
		assert.NoError(t, err)
	})

	t.Run("transaction rollback", func(t *testing.T) {
		s := newStore(t)
		boom := errors.New("boom")
		err := s.WithinTx(ctx, func(ctx context.Context) error {
			u := &User{Username: "ghost", Email: "ghost@mail.com", Password: "x", Inactive: true}
			if err := s.Users().Create(ctx, u); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		_, err = s.Users().FindByEmail(ctx, "ghost@mail.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("transaction commit", func(t *testing.T) {
		s := newStore(t)
		u := addUser(t, s, "user1", false)
		require.NoError(t, s.Tokens().Create(ctx, &Token{Token: "a", UserID: u.ID, LastUsedAt: time.Now()}))

		err := s.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.Tokens().DeleteAllForUser(ctx, u.ID); err != nil {
				return err
			}
			return s.Users().Delete(ctx, u.ID)
		})
		require.NoError(t, err)
		_, err = s.Users().FindByID(ctx, u.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Tokens().FindByToken(ctx, "a")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(ctx))
	})
}
