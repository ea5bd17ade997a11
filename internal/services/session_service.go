// internal/services/session_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/verifyhub/internal/config"
	"github.com/javajoker/verifyhub/internal/metrics"
	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/repository"
	"github.com/javajoker/verifyhub/internal/sessions"
	"github.com/javajoker/verifyhub/internal/utils"
)

type SessionService struct {
	store    repository.Store
	sessions sessions.Store
	cfg      config.SessionConfig
	now      func() time.Time
}

type CreateSessionRequest struct {
	Channel string `json:"channel"`
	Subject string `json:"subject" validate:"max=255"`
}

func NewSessionService(store repository.Store, sessionStore sessions.Store, cfg config.SessionConfig) *SessionService {
	if cfg.MobileQRTTL <= 0 {
		cfg.MobileQRTTL = 5 * time.Minute
	}
	if cfg.EmailLinkTTL <= 0 {
		cfg.EmailLinkTTL = 15 * time.Minute
	}
	return &SessionService{
		store:    store,
		sessions: sessionStore,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Create opens a verification session for the license the plugin token names.
func (s *SessionService) Create(ctx context.Context, caller *utils.PluginClaims, req CreateSessionRequest) (*sessions.Session, error) {
	license, err := s.callerLicense(ctx, caller)
	if err != nil {
		return nil, err
	}

	channel, err := resolveChannel(req.Channel, license)
	if err != nil {
		return nil, err
	}

	token, err := utils.GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.now().UTC()
	session := &sessions.Session{
		ID:        uuid.New(),
		Token:     token,
		LicenseID: license.ID,
		Channel:   channel,
		Domain:    license.InstalledDomain,
		Subject:   strings.TrimSpace(req.Subject),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl(channel)),
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	metrics.VerificationSessions.WithLabelValues(string(channel), "created").Inc()
	return session, nil
}

// Get resolves a session by token for the plugin that owns it.
func (s *SessionService) Get(ctx context.Context, caller *utils.PluginClaims, token string) (*sessions.Session, error) {
	session, err := s.lookup(ctx, caller, token)
	if err != nil {
		return nil, err
	}
	if session.ExpiredAt(s.now()) {
		return nil, newError(KindExpired, "Session expired.")
	}
	return session, nil
}

// Complete marks a session verified. Only the first completion succeeds.
func (s *SessionService) Complete(ctx context.Context, caller *utils.PluginClaims, token string) (*sessions.Session, error) {
	session, err := s.Get(ctx, caller, token)
	if err != nil {
		return nil, err
	}

	completed, err := s.sessions.Complete(ctx, token, s.now().UTC())
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		return nil, newError(KindNotFound, "Session not found.")
	case errors.Is(err, sessions.ErrAlreadyCompleted):
		return nil, newError(KindInvalidState, "Session already completed.")
	case err != nil:
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}

	metrics.VerificationSessions.WithLabelValues(string(session.Channel), "completed").Inc()
	return completed, nil
}

func (s *SessionService) lookup(ctx context.Context, caller *utils.PluginClaims, token string) (*sessions.Session, error) {
	if caller == nil {
		return nil, newError(KindUnauthorized, "Plugin token required.")
	}
	session, err := s.sessions.GetByToken(ctx, strings.TrimSpace(token))
	if errors.Is(err, sessions.ErrNotFound) {
		return nil, newError(KindNotFound, "Session not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	// Sessions of other licenses are invisible to this plugin.
	if session.LicenseID.String() != caller.LicenseID {
		return nil, newError(KindNotFound, "Session not found.")
	}
	return session, nil
}

func (s *SessionService) callerLicense(ctx context.Context, caller *utils.PluginClaims) (*models.License, error) {
	if caller == nil {
		return nil, newError(KindUnauthorized, "Plugin token required.")
	}
	licenseID, err := uuid.Parse(caller.LicenseID)
	if err != nil {
		return nil, newError(KindUnauthorized, "Invalid plugin token.")
	}
	license, err := s.store.FindLicenseByID(ctx, licenseID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "License not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load license: %w", err)
	}
	if license.IsExpiredAt(s.now()) {
		return nil, newError(KindExpired, "License expired.")
	}
	if license.Status != models.LicenseStatusActive {
		return nil, newError(KindInvalidState, "License is not active.")
	}
	return license, nil
}

func (s *SessionService) ttl(channel models.Channel) time.Duration {
	if channel == models.ChannelEmail {
		return s.cfg.EmailLinkTTL
	}
	return s.cfg.MobileQRTTL
}
