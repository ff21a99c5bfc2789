// Package user implements account registration, activation, credential checks
// and the owner-only profile operations.
package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/hoaxify/internal/apperr"
	"github.com/example/hoaxify/internal/email"
	"github.com/example/hoaxify/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// TokenRevoker removes every session of a user. The ctx passed in may carry a
// store transaction.
type TokenRevoker interface {
	RevokeAllForUser(ctx context.Context, userID int64) error
}

type Config struct {
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=4,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,password"`
}

type UpdateInput struct {
	Username string `json:"username" validate:"required,min=4,max=32"`
}

// Profile is the public view of a user.
type Profile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type Page struct {
	Content    []Profile `json:"content"`
	Page       int       `json:"page"`
	Size       int       `json:"size"`
	TotalPages int       `json:"totalPages"`
}

type Service struct {
	store    store.Store
	tokens   TokenRevoker
	mailer   email.Sender
	validate *validator.Validate
	cost     int
	log      logrus.FieldLogger
}

func NewService(st store.Store, tokens TokenRevoker, mailer email.Sender, cfg Config, log logrus.FieldLogger) *Service {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		store:    st,
		tokens:   tokens,
		mailer:   mailer,
		validate: newValidator(),
		cost:     cost,
		log:      log.WithField("component", "user"),
	}
}

func toProfile(u *store.User) Profile {
	return Profile{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Register stores a new inactive account and mails its activation token. The
// insert is rolled back when the mail cannot be sent.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	fields, err := fieldErrors(s.validate, in)
	if err != nil {
		return fmt.Errorf("validating registration: %w", err)
	}
	if _, bad := fields["email"]; !bad {
		_, err := s.store.Users().FindByEmail(ctx, in.Email)
		switch {
		case err == nil:
			if fields == nil {
				fields = map[string]string{}
			}
			fields["email"] = msgEmailInUse
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("checking email: %w", err)
		}
	}
	if len(fields) > 0 {
		return apperr.Validation(apperr.MsgValidationFailure, fields)
	}

	hash, err := hashPassword(in.Password, s.cost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	activation := uuid.NewString()
	u := &store.User{
		Username:        in.Username,
		Email:           in.Email,
		Password:        hash,
		Inactive:        true,
		ActivationToken: &activation,
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.Users().Create(ctx, u); err != nil {
			if errors.Is(err, store.ErrDuplicateEmail) {
				return apperr.Validation(apperr.MsgValidationFailure, map[string]string{"email": msgEmailInUse})
			}
			return fmt.Errorf("creating user: %w", err)
		}
		if err := s.mailer.SendAccountActivation(ctx, u.Email, activation); err != nil {
			return apperr.Dependency(apperr.MsgEmailFailure, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithField("user_id", u.ID).Info("user registered")
	return nil
}

// Activate consumes an activation token.
func (s *Service) Activate(ctx context.Context, activationToken string) error {
	u, err := s.store.Users().FindByActivationToken(ctx, activationToken)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Validation(apperr.MsgInvalidActivation, nil)
	}
	if err != nil {
		return fmt.Errorf("finding activation token: %w", err)
	}
	if err := s.store.Users().Activate(ctx, u.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Validation(apperr.MsgInvalidActivation, nil)
		}
		return fmt.Errorf("activating user %d: %w", u.ID, err)
	}
	s.log.WithField("user_id", u.ID).Info("user activated")
	return nil
}

// Authenticate checks credentials. A malformed email, an unknown email and a
// wrong password all yield the same authentication error; an inactive account
// with the right password is forbidden.
func (s *Service) Authenticate(ctx context.Context, emailAddr, password string) (*store.User, error) {
	if err := s.validate.Var(emailAddr, "required,email"); err != nil {
		return nil, apperr.Authentication()
	}
	u, err := s.store.Users().FindByEmail(ctx, emailAddr)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Authentication()
	}
	if err != nil {
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	if !comparePassword(u.Password, password) {
		return nil, apperr.Authentication()
	}
	if u.Inactive {
		return nil, apperr.Forbidden(apperr.MsgAccountInactive)
	}
	return u, nil
}

// List pages through active users ordered by id. excludeID (0 for anonymous
// callers) is left out of the result.
func (s *Service) List(ctx context.Context, excludeID int64, page, size int) (*Page, error) {
	res, err := s.store.Users().ListActive(ctx, excludeID, size, pageOffset(page, size))
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	content := make([]Profile, 0, len(res.Users))
	for i := range res.Users {
		content = append(content, toProfile(&res.Users[i]))
	}
	return &Page{
		Content:    content,
		Page:       page,
		Size:       size,
		TotalPages: (res.Total + size - 1) / size,
	}, nil
}

// Get returns an active user.
func (s *Service) Get(ctx context.Context, id int64) (*Profile, error) {
	u, err := s.store.Users().FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && u.Inactive) {
		return nil, apperr.NotFound(apperr.MsgUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("finding user %d: %w", id, err)
	}
	p := toProfile(u)
	return &p, nil
}

// Update changes the caller's own username. callerID 0 means anonymous.
func (s *Service) Update(ctx context.Context, callerID, id int64, in UpdateInput) (*Profile, error) {
	if callerID == 0 || callerID != id {
		return nil, apperr.Forbidden(apperr.MsgUnauthorizedUpdate)
	}
	fields, err := fieldErrors(s.validate, in)
	if err != nil {
		return nil, fmt.Errorf("validating update: %w", err)
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(apperr.MsgValidationFailure, fields)
	}

	if err := s.store.Users().UpdateUsername(ctx, id, in.Username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(apperr.MsgUserNotFound)
		}
		return nil, fmt.Errorf("updating user %d: %w", id, err)
	}
	u, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reloading user %d: %w", id, err)
	}
	p := toProfile(u)
	return &p, nil
}

// Delete removes the caller's own account together with all its sessions in
// one transaction.
func (s *Service) Delete(ctx context.Context, callerID, id int64) error {
	if callerID == 0 || callerID != id {
		return apperr.Forbidden(apperr.MsgUnauthorizedDelete)
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
			return err
		}
		if err := s.store.Users().Delete(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NotFound(apperr.MsgUserNotFound)
			}
			return fmt.Errorf("deleting user %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}
