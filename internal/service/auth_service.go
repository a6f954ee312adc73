package service

import (
	"context"
	"errors"
	"log/slog"

	"go-inventory-tracker/internal/model"
	"go-inventory-tracker/internal/repository"
	"go-inventory-tracker/pkg/apperror"
	"go-inventory-tracker/pkg/jwt"

	"github.com/google/uuid"
)

const minPasswordLength = 6

var errInvalidCredentials = apperror.Validation("Invalid credentials")

type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResponse, error)
	ResetPassword(ctx context.Context, username, oldPassword, newPassword string) error
	Authenticate(ctx context.Context, token string) (*model.User, error)
	EnsureUser(ctx context.Context, username, password string) (created bool, err error)
	SetPassword(ctx context.Context, username, password string) error
}

type LoginResponse struct {
	Token string             `json:"token"`
	User  model.UserResponse `json:"user"`
}

type authService struct {
	userRepo repository.UserRepository
	tokens   *jwt.Manager
	log      *slog.Logger
}

func NewAuthService(userRepo repository.UserRepository, tokens *jwt.Manager, log *slog.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		log:      log,
	}
}

func (s *authService) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	if username == "" || password == "" {
		return nil, apperror.Validation("Username & password required")
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, apperror.Internal("Login failed", err)
	}
	if !user.CheckPassword(password) {
		return nil, errInvalidCredentials
	}

	// Single session: a new version invalidates previously issued tokens
	version := uuid.New().String()
	if err := s.userRepo.UpdateTokenVersion(ctx, user.ID, version); err != nil {
		return nil, apperror.Internal("Failed to update session", err)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username, version)
	if err != nil {
		return nil, apperror.Internal("Failed to generate token", err)
	}

	s.log.Info("user logged in", "username", user.Username)
	return &LoginResponse{Token: token, User: user.ToResponse()}, nil
}

func (s *authService) ResetPassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if username == "" || oldPassword == "" || newPassword == "" {
		return apperror.Validation("username, old_password, and new_password are required")
	}
	if len(newPassword) < minPasswordLength {
		return apperror.Validation("New password must be at least 6 characters")
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errInvalidCredentials
		}
		return apperror.Internal("Failed to reset password", err)
	}
	if !user.CheckPassword(oldPassword) {
		return errInvalidCredentials
	}

	return s.replacePassword(ctx, user, newPassword)
}

// Authenticate validates the token and checks it against the stored session version.
func (s *authService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrMissingToken) {
			return nil, apperror.Auth("Missing authorization token")
		}
		return nil, apperror.Auth("Invalid or expired token")
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Auth("User not found")
		}
		return nil, apperror.Internal("Failed to authenticate", err)
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, apperror.Auth("Session expired")
	}
	return user, nil
}

// EnsureUser creates the user when missing. An existing user is left alone.
func (s *authService) EnsureUser(ctx context.Context, username, password string) (bool, error) {
	_, err := s.userRepo.FindByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	user := &model.User{Username: username}
	user.CreatedBy = "system"
	user.UpdatedBy = "system"
	if err := user.SetPassword(password); err != nil {
		return false, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SetPassword overwrites a password without checking the old one. Operator use only.
func (s *authService) SetPassword(ctx context.Context, username, password string) error {
	if len(password) < minPasswordLength {
		return apperror.Validation("New password must be at least 6 characters")
	}
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("User not found")
		}
		return err
	}
	return s.replacePassword(ctx, user, password)
}

func (s *authService) replacePassword(ctx context.Context, user *model.User, password string) error {
	if err := user.SetPassword(password); err != nil {
		return apperror.Internal("Failed to hash new password", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, user.Password); err != nil {
		return apperror.Internal("Failed to update password", err)
	}
	// existing sessions end with the old password
	if err := s.userRepo.UpdateTokenVersion(ctx, user.ID, uuid.New().String()); err != nil {
		return apperror.Internal("Failed to update session", err)
	}
	return nil
}
