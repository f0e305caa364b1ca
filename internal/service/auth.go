package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/learnify/internal/apperror"
	"github.com/sakif/learnify/internal/auth"
	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/repository"
)

const (
	MinPasswordLength = 8
	MaxNameLength     = 255
)

// AuthService handles accounts and sign-in.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ SessionManager (opaque session tokens)
//
// Password and GitHub sign-in both end in the same place: a new session
// whose raw token the handler puts in the session cookie.
type AuthService struct {
	users     repository.UserRepository
	sessions  *auth.SessionManager
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	sessions *auth.SessionManager,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		passwords: passwords,
		logger:    logger,
	}
}

// SignUp creates a password account. It does not sign the user in.
func (s *AuthService) SignUp(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = model.NormalizeEmail(email)

	if name == "" || email == "" || password == "" {
		return nil, apperror.ValidationFailed("", "name, email and password are required")
	}
	if len(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name", fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "email is not valid")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", "password is too long")
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ConflictWith("email already in use", nil)
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID))
	return user, nil
}

// SignIn checks the password and starts a session. Unknown emails, wrong
// passwords and password-less (GitHub) accounts all fail the same way.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*model.User, string, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", apperror.ValidationFailed("", "email and password are required")
	}

	invalid := apperror.Unauthorized("invalid credentials")

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, "", invalid
		}
		return nil, "", fmt.Errorf("service/auth: loading user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, "", invalid
		}
		return nil, "", fmt.Errorf("service/auth: %w", err)
	}

	raw, err := s.sessions.Create(ctx, user.Email)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user signed in", slog.String("userID", user.ID))
	return user, raw, nil
}

// SignOut revokes the session for raw, if any.
func (s *AuthService) SignOut(ctx context.Context, raw string) error {
	return s.sessions.Revoke(ctx, raw)
}

// Me returns the account behind an identity. An identity with no account,
// which the legacy header can produce, is treated as signed out.
func (s *AuthService) Me(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.GetUserByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("no account for this identity")
		}
		return nil, fmt.Errorf("service/auth: loading user: %w", err)
	}
	return user, nil
}

// UpdateName changes the caller's display name.
func (s *AuthService) UpdateName(ctx context.Context, email, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if len(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name", "name is too long")
	}

	user, err := s.users.UpdateUserName(ctx, model.NormalizeEmail(email), name)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("user not found")
		}
		return nil, fmt.Errorf("service/auth: updating name: %w", err)
	}
	return user, nil
}

// LoginWithGitHub upserts the account for a GitHub profile, keyed by its
// verified email, and starts a session.
func (s *AuthService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*model.User, string, error) {
	if gh == nil || strings.TrimSpace(gh.Email) == "" {
		return nil, "", apperror.Unauthorized("GitHub account has no verified email")
	}

	name := strings.TrimSpace(gh.Name)
	if name == "" {
		name = gh.Login
	}
	user := &model.User{
		Name:      name,
		Email:     model.NormalizeEmail(gh.Email),
		AvatarURL: gh.AvatarURL,
	}
	if err := s.users.UpsertUserByEmail(ctx, user); err != nil {
		return nil, "", fmt.Errorf("service/auth: upserting GitHub user %s: %w", gh.Login, err)
	}

	raw, err := s.sessions.Create(ctx, user.Email)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user signed in via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", gh.Login),
	)
	return user, raw, nil
}
