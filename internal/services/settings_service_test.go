// internal/services/settings_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/verifyhub/internal/config"
	"github.com/javajoker/verifyhub/internal/models"
)

func TestNormalizeBaseDomain(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"https host", "https://Verify.Example.com", "https://verify.example.com", false},
		{"path dropped", "https://verify.example.com/api/v1/", "https://verify.example.com", false},
		{"default port dropped", "https://verify.example.com:443", "https://verify.example.com", false},
		{"custom port kept", "http://localhost:8080", "http://localhost:8080", false},
		{"http default port", "http://verify.example.com:80/", "http://verify.example.com", false},
		{"missing scheme", "verify.example.com", "", true},
		{"ftp scheme", "ftp://verify.example.com", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeBaseDomain(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type SettingsServiceTestSuite struct {
	serviceSuite
	settings *SettingsService
	adminID  uuid.UUID
}

func TestSettingsServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SettingsServiceTestSuite))
}

func (s *SettingsServiceTestSuite) SetupTest() {
	s.serviceSuite.SetupTest()
	s.settings = NewSettingsService(s.store, config.PlatformConfig{BaseDomain: "https://api.verifyhub.io/"})
	s.settings.now = s.clock.Now
	s.adminID = uuid.New()
}

func (s *SettingsServiceTestSuite) configureSMTP() {
	_, err := s.settings.UpdateSMTP(s.ctx, UpdateSMTPRequest{
		Host:      "smtp.example.com",
		Port:      465,
		Username:  "mailer",
		Password:  "s3cret",
		FromEmail: "noreply@example.com",
	}, s.adminID)
	s.Require().NoError(err)
}

func (s *SettingsServiceTestSuite) TestPluginSettings_FallsBackToEnvironment() {
	settings, err := s.settings.PluginSettings(s.ctx)
	s.Require().NoError(err)
	s.Equal("https://api.verifyhub.io", settings.BaseDomain)
	s.Equal("environment", settings.Source)

	_, err = s.settings.UpdatePluginBaseDomain(s.ctx, "https://plugins.example.com/", s.adminID)
	s.Require().NoError(err)

	settings, err = s.settings.PluginSettings(s.ctx)
	s.Require().NoError(err)
	s.Equal("https://plugins.example.com", settings.BaseDomain)
	s.Equal("settings", settings.Source)
}

func (s *SettingsServiceTestSuite) TestUpdateSMTP_KeepsPasswordWhenBlank() {
	s.configureSMTP()

	updated, err := s.settings.UpdateSMTP(s.ctx, UpdateSMTPRequest{
		Host:      "smtp2.example.com",
		Port:      587,
		FromEmail: "noreply@example.com",
	}, s.adminID)
	s.Require().NoError(err)
	s.Empty(updated.Password)
	s.True(updated.HasPassword)
	s.Equal("VerifyHub", updated.FromName)

	stored, err := s.settings.SMTP(s.ctx)
	s.Require().NoError(err)
	s.Equal("smtp2.example.com", stored.Host)
	s.Equal("s3cret", stored.Password)
	s.True(stored.EnableSSL)
}

func (s *SettingsServiceTestSuite) TestPluginSMTP() {
	license := s.issue(s.starter)

	_, err := s.settings.PluginSMTP(s.ctx, license.Key)
	s.ErrorIs(err, ErrNotFound)

	s.configureSMTP()
	smtp, err := s.settings.PluginSMTP(s.ctx, license.Key)
	s.Require().NoError(err)
	s.Equal("smtp.example.com", smtp.Host)
	s.Equal(465, smtp.Port)
	s.Equal("s3cret", smtp.Password)
}

func (s *SettingsServiceTestSuite) TestPluginSMTP_RejectsUnusableLicenses() {
	s.configureSMTP()

	_, err := s.settings.PluginSMTP(s.ctx, " ")
	s.ErrorIs(err, ErrMalformedInput)

	_, err = s.settings.PluginSMTP(s.ctx, "EML-0000-0000-0000-0000")
	s.ErrorIs(err, ErrUnauthorized)

	mobileProduct := models.Product{
		BaseModel: models.BaseModel{ID: uuid.New()},
		Name:      "Mobile QR",
		Slug:      models.ProductSlugMobile,
		IsActive:  true,
	}
	mobilePlan := models.Plan{BaseModel: models.BaseModel{ID: uuid.New()}, Name: "Basic", DurationDays: 30, MaxDomains: 1}
	s.store.SeedProduct(mobileProduct, mobilePlan)
	mobile, err := s.licenses.Create(s.ctx, CreateLicenseParams{UserID: s.user.ID, ProductID: mobileProduct.ID, PlanID: mobilePlan.ID})
	s.Require().NoError(err)
	s.Equal("MOB", mobile.KeyPrefix)

	_, err = s.settings.PluginSMTP(s.ctx, mobile.Key)
	s.ErrorIs(err, ErrUnauthorized)

	license := s.issue(s.starter)
	s.clock.Advance(366 * 24 * time.Hour)
	_, err = s.settings.PluginSMTP(s.ctx, license.Key)
	s.ErrorIs(err, ErrExpired)
}
