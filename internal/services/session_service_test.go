// internal/services/session_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/javajoker/verifyhub/internal/config"
	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/sessions"
)

type SessionServiceTestSuite struct {
	serviceSuite
	sessionStore *sessions.MemoryStore
	sessions     *SessionService
	license      *models.License
}

func TestSessionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceTestSuite))
}

func (s *SessionServiceTestSuite) SetupTest() {
	s.serviceSuite.SetupTest()
	s.sessionStore = sessions.NewMemoryStore()
	s.sessions = NewSessionService(s.store, s.sessionStore, config.SessionConfig{
		MobileQRTTL:  5 * time.Minute,
		EmailLinkTTL: 15 * time.Minute,
	})
	s.sessions.now = s.clock.Now

	s.license = s.activate(s.issue(s.starter), "shop.example.com")
}

func (s *SessionServiceTestSuite) TestCreate_UsesChannelTTL() {
	email, err := s.sessions.Create(s.ctx, s.pluginClaims(s.license), CreateSessionRequest{Subject: " buyer@example.com "})
	s.Require().NoError(err)
	s.Equal(models.ChannelEmail, email.Channel)
	s.Equal("buyer@example.com", email.Subject)
	s.Equal("shop.example.com", email.Domain)
	s.Equal(15*time.Minute, email.ExpiresAt.Sub(email.CreatedAt))
	s.NotEmpty(email.Token)

	mobile, err := s.sessions.Create(s.ctx, s.pluginClaims(s.license), CreateSessionRequest{Channel: "Mobile"})
	s.Require().NoError(err)
	s.Equal(models.ChannelMobile, mobile.Channel)
	s.Equal(5*time.Minute, mobile.ExpiresAt.Sub(mobile.CreatedAt))
	s.NotEqual(email.Token, mobile.Token)
}

func (s *SessionServiceTestSuite) TestCreate_RequiresUsableLicense() {
	_, err := s.sessions.Create(s.ctx, nil, CreateSessionRequest{})
	s.ErrorIs(err, ErrUnauthorized)

	_, err = s.licenses.Suspend(s.ctx, s.license.ID)
	s.Require().NoError(err)
	_, err = s.sessions.Create(s.ctx, s.pluginClaims(s.license), CreateSessionRequest{})
	s.ErrorIs(err, ErrInvalidState)

	_, err = s.licenses.Reactivate(s.ctx, s.license.ID)
	s.Require().NoError(err)
	s.clock.Advance(366 * 24 * time.Hour)
	_, err = s.sessions.Create(s.ctx, s.pluginClaims(s.license), CreateSessionRequest{})
	s.ErrorIs(err, ErrExpired)
}

func (s *SessionServiceTestSuite) TestGet_ExpiresWithTTL() {
	session, err := s.sessions.Create(s.ctx, s.pluginClaims(s.license), CreateSessionRequest{Channel: "mobile"})
	s.Require().NoError(err)

	found, err := s.sessions.Get(s.ctx, s.pluginClaims(s.license), session.Token)
	s.Require().NoError(err)
	s.Equal(session.ID, found.ID)

	s.clock.Advance(5 * time.Minute)
	_, err = s.sessions.Get(s.ctx, s.pluginClaims(s.license), session.Token)
	s.ErrorIs(err, ErrExpired)
}

func (s *SessionServiceTestSuite) TestGet_InvisibleToOtherLicenses() {
	session, err := s.sessions.Create(s.ctx, s.pluginClaims(s.license), CreateSessionRequest{})
	s.Require().NoError(err)
	other := s.activate(s.issue(s.starter), "other.example.com")

	_, err = s.sessions.Get(s.ctx, s.pluginClaims(other), session.Token)
	s.ErrorIs(err, ErrNotFound)

	_, err = s.sessions.Get(s.ctx, s.pluginClaims(s.license), "no-such-token")
	s.ErrorIs(err, ErrNotFound)
}

func (s *SessionServiceTestSuite) TestComplete_OnlyOnce() {
	session, err := s.sessions.Create(s.ctx, s.pluginClaims(s.license), CreateSessionRequest{})
	s.Require().NoError(err)

	completed, err := s.sessions.Complete(s.ctx, s.pluginClaims(s.license), session.Token)
	s.Require().NoError(err)
	s.Require().NotNil(completed.CompletedAt)

	_, err = s.sessions.Complete(s.ctx, s.pluginClaims(s.license), session.Token)
	s.ErrorIs(err, ErrInvalidState)
}

func (s *SessionServiceTestSuite) TestComplete_ExpiredSession() {
	session, err := s.sessions.Create(s.ctx, s.pluginClaims(s.license), CreateSessionRequest{})
	s.Require().NoError(err)

	s.clock.Advance(16 * time.Minute)
	_, err = s.sessions.Complete(s.ctx, s.pluginClaims(s.license), session.Token)

	s.ErrorIs(err, ErrExpired)
}
