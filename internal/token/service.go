// Package token issues and judges opaque session tokens. Validity is a sliding
// window: every successful verification pushes the token's lastUsedAt forward,
// and a token idle for the whole window is deleted the next time it is seen.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/hoaxify/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	DefaultExpiry         = 7 * 24 * time.Hour
	defaultRefreshTimeout = 5 * time.Second
	tokenBytes            = 32
)

// Identity is the caller resolved from a valid token.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserFinder resolves the owner of a token.
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*store.User, error)
}

// Config carries the token policy. Zero values fall back to defaults.
type Config struct {
	Expiry time.Duration
	// RefreshTimeout bounds each background lastUsedAt refresh.
	RefreshTimeout time.Duration
	Now            func() time.Time
}

type Service struct {
	tokens         store.TokenRepository
	users          UserFinder
	expiry         time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
	log            logrus.FieldLogger
	pending        sync.WaitGroup
}

func NewService(tokens store.TokenRepository, users UserFinder, cfg Config, log logrus.FieldLogger) *Service {
	s := &Service{
		tokens:         tokens,
		users:          users,
		expiry:         cfg.Expiry,
		refreshTimeout: cfg.RefreshTimeout,
		now:            cfg.Now,
		log:            log.WithField("component", "token"),
	}
	if s.expiry <= 0 {
		s.expiry = DefaultExpiry
	}
	if s.refreshTimeout <= 0 {
		s.refreshTimeout = defaultRefreshTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Expiry reports the sliding window length.
func (s *Service) Expiry() time.Duration { return s.expiry }

// CreateToken mints a new token for userID and persists it.
func (s *Service) CreateToken(ctx context.Context, userID int64) (string, error) {
	raw, err := genToken(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	if err := s.tokens.Create(ctx, &store.Token{Token: raw, UserID: userID, LastUsedAt: s.now()}); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}
	return raw, nil
}

// Verify resolves raw to its owner. It returns (nil, nil) when the token is
// unknown or expired; an error only signals a storage failure.
//
// Verify is not read-only: an expired token is deleted, and a valid one gets
// its lastUsedAt refreshed in the background (see Wait).
func (s *Service) Verify(ctx context.Context, raw string) (*Identity, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := s.tokens.FindByToken(ctx, raw)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding token: %w", err)
	}

	now := s.now()
	if s.expired(t.LastUsedAt, now) {
		if err := s.tokens.DeleteByToken(ctx, raw); err != nil {
			return nil, fmt.Errorf("deleting expired token: %w", err)
		}
		s.log.WithField("user_id", t.UserID).Debug("expired token removed")
		return nil, nil
	}

	u, err := s.users.FindByID(ctx, t.UserID)
	if errors.Is(err, store.ErrNotFound) {
		// owner vanished without the cascade; drop the orphan
		if err := s.tokens.DeleteByToken(ctx, raw); err != nil {
			return nil, fmt.Errorf("deleting orphaned token: %w", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding token owner: %w", err)
	}

	s.refreshAsync(raw, now)
	return &Identity{ID: u.ID, Username: u.Username, Email: u.Email}, nil
}

// Revoke deletes exactly raw. Unknown tokens are a no-op.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	if err := s.tokens.DeleteByToken(ctx, raw); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// RevokeAllForUser deletes every token owned by userID. Pass a ctx from
// store.WithinTx to make it part of a larger unit.
func (s *Service) RevokeAllForUser(ctx context.Context, userID int64) error {
	if err := s.tokens.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoking tokens of user %d: %w", userID, err)
	}
	return nil
}

// PurgeExpired deletes every token idle for at least the window.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteUnusedSince(ctx, s.now().Add(-s.expiry))
	if err != nil {
		return 0, fmt.Errorf("purging expired tokens: %w", err)
	}
	return n, nil
}

// Wait blocks until all background refreshes have finished.
func (s *Service) Wait() { s.pending.Wait() }

// expired treats elapsed == window as expired.
func (s *Service) expired(lastUsed, now time.Time) bool {
	return now.Sub(lastUsed) >= s.expiry
}

// refreshAsync runs detached from the request: the response must not wait on
// it and request cancellation must not abort it. A concurrent logout may have
// removed the row already, in which case the update matches nothing. The store
// ignores an at older than the current value, so refreshes landing out of
// order never move lastUsedAt backwards.
func (s *Service) refreshAsync(raw string, at time.Time) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
		defer cancel()
		if err := s.tokens.Touch(ctx, raw, at); err != nil {
			s.log.WithError(err).Warn("refreshing token usage failed")
		}
	}()
}

func genToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
