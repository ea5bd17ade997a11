// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/verifyhub/internal/config"
	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/repository"
	"github.com/javajoker/verifyhub/internal/utils"
)

type AuthService struct {
	store    repository.Store
	sessions *utils.SessionTokenIssuer
	cfg      config.JWTConfig
	now      func() time.Time
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Name     string `json:"name" validate:"required,max=255"`
	Company  string `json:"company" validate:"max=255"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"` // in seconds
	ExpiresAt    time.Time    `json:"expires_at"`
}

func NewAuthService(store repository.Store, sessions *utils.SessionTokenIssuer, cfg config.JWTConfig) *AuthService {
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	return &AuthService{
		store:    store,
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, newError(KindMalformedInput, "%s", utils.FirstValidationMessage(err))
	}

	email := normalizeEmail(req.Email)
	if _, err := s.store.FindUserByEmail(ctx, email); err == nil {
		return nil, newError(KindConflict, "user with this email already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user := &models.User{
		Email:    email,
		Name:     strings.TrimSpace(req.Name),
		Company:  strings.TrimSpace(req.Company),
		Role:     models.UserRoleCustomer,
		IsActive: true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, newError(KindConflict, "user with this email already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logrus.WithField("user_id", user.ID).Info("User registered")
	return s.issue(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, newError(KindMalformedInput, "%s", utils.FirstValidationMessage(err))
	}

	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindUnauthorized, "invalid email or password")
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := user.CheckPassword(req.Password); err != nil {
		return nil, newError(KindUnauthorized, "invalid email or password")
	}
	if !user.IsActive {
		return nil, newError(KindForbidden, "account is disabled")
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.store.SaveUser(ctx, user); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to record last login")
	}

	return s.issue(ctx, user)
}

// Refresh exchanges a refresh credential for a new session. The presented
// credential is consumed; replaying it fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, newError(KindUnauthorized, "invalid refresh token")
	}

	token, err := s.store.ConsumeRefreshToken(ctx, utils.HashString(refreshToken), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindUnauthorized, "invalid refresh token")
		}
		return nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}

	user, err := s.store.FindUserByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindUnauthorized, "invalid refresh token")
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.IsActive {
		return nil, newError(KindForbidden, "account is disabled")
	}

	return s.issue(ctx, user)
}

// Logout revokes the refresh credential. Unknown credentials are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	err := s.store.RevokeRefreshToken(ctx, utils.HashString(refreshToken))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindNotFound, "user not found")
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return user, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*AuthResponse, error) {
	accessToken, expiresAt, err := s.sessions.Issue(user.ID, user.Email, user.Name, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := utils.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	// Only the hash is stored.
	if err := s.store.CreateRefreshToken(ctx, &models.RefreshToken{
		UserID:    user.ID,
		Token:     utils.HashString(refreshToken),
		ExpiresAt: s.now().Add(s.cfg.RefreshTokenTTL),
	}); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(time.Until(expiresAt).Seconds()),
		ExpiresAt:    expiresAt,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
