// internal/services/settings_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/verifyhub/internal/config"
	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/repository"
)

const (
	defaultSMTPPort     = 587
	defaultSMTPFromName = "VerifyHub"
)

type SettingsService struct {
	store    repository.Store
	platform config.PlatformConfig
	now      func() time.Time
}

type PluginSettings struct {
	BaseDomain string `json:"base_domain"`
	Source     string `json:"source"`
}

// SMTPSettings are the mail settings handed to email plugins.
type SMTPSettings struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"`
	FromEmail   string `json:"fromEmail"`
	FromName    string `json:"fromName"`
	EnableSSL   bool   `json:"enableSsl"`
	HasPassword bool   `json:"hasPassword"`
}

func (s SMTPSettings) Configured() bool {
	return s.Host != "" && s.Port > 0 && s.FromEmail != ""
}

type EmailConfigRequest struct {
	LicenseKey string `json:"licenseKey"`
}

type UpdateSMTPRequest struct {
	Host      string `json:"host" validate:"required,max=255"`
	Port      int    `json:"port" validate:"gt=0,max=65535"`
	Username  string `json:"username" validate:"max=255"`
	Password  string `json:"password" validate:"max=255"`
	FromEmail string `json:"fromEmail" validate:"required,email"`
	FromName  string `json:"fromName" validate:"max=255"`
	EnableSSL *bool  `json:"enableSsl"`
}

func NewSettingsService(store repository.Store, platform config.PlatformConfig) *SettingsService {
	return &SettingsService{store: store, platform: platform, now: time.Now}
}

// PluginSettings returns the base domain plugins call back to, falling back to the
// configured platform domain.
func (s *SettingsService) PluginSettings(ctx context.Context) (*PluginSettings, error) {
	values, err := s.store.GetSettings(ctx, models.SettingPluginBaseDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to load plugin settings: %w", err)
	}
	if v := strings.TrimSpace(values[models.SettingPluginBaseDomain]); v != "" {
		return &PluginSettings{BaseDomain: v, Source: "settings"}, nil
	}
	return &PluginSettings{BaseDomain: strings.TrimRight(s.platform.BaseDomain, "/"), Source: "environment"}, nil
}

func (s *SettingsService) UpdatePluginBaseDomain(ctx context.Context, raw string, updatedBy uuid.UUID) (*PluginSettings, error) {
	normalized, err := normalizeBaseDomain(raw)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertSettings(ctx, map[string]string{models.SettingPluginBaseDomain: normalized}, &updatedBy); err != nil {
		return nil, fmt.Errorf("failed to save plugin settings: %w", err)
	}
	return &PluginSettings{BaseDomain: normalized, Source: "settings"}, nil
}

// normalizeBaseDomain accepts an absolute http(s) URL and reduces it to scheme://host[:port].
func normalizeBaseDomain(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return "", newError(KindMalformedInput, "Base domain must be an absolute http(s) URL.")
	}
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(u.Scheme == "http" && port == "80") && !(u.Scheme == "https" && port == "443") {
		host = net.JoinHostPort(host, port)
	}
	return u.Scheme + "://" + host, nil
}

func (s *SettingsService) SMTP(ctx context.Context) (*SMTPSettings, error) {
	values, err := s.store.GetSettings(ctx,
		models.SettingSMTPHost, models.SettingSMTPPort, models.SettingSMTPUsername,
		models.SettingSMTPPassword, models.SettingSMTPFromEmail, models.SettingSMTPFromName,
		models.SettingSMTPEnableSSL)
	if err != nil {
		return nil, fmt.Errorf("failed to load smtp settings: %w", err)
	}

	settings := &SMTPSettings{
		Host:      values[models.SettingSMTPHost],
		Port:      defaultSMTPPort,
		Username:  values[models.SettingSMTPUsername],
		Password:  values[models.SettingSMTPPassword],
		FromEmail: values[models.SettingSMTPFromEmail],
		FromName:  values[models.SettingSMTPFromName],
		EnableSSL: true,
	}
	if port, err := strconv.Atoi(values[models.SettingSMTPPort]); err == nil && port > 0 {
		settings.Port = port
	}
	if ssl, err := strconv.ParseBool(values[models.SettingSMTPEnableSSL]); err == nil {
		settings.EnableSSL = ssl
	}
	if settings.FromName == "" {
		settings.FromName = defaultSMTPFromName
	}
	settings.HasPassword = settings.Password != ""
	return settings, nil
}

// UpdateSMTP saves the mail settings. An empty password keeps the stored one.
func (s *SettingsService) UpdateSMTP(ctx context.Context, req UpdateSMTPRequest, updatedBy uuid.UUID) (*SMTPSettings, error) {
	req.Host = strings.TrimSpace(req.Host)
	req.FromEmail = strings.TrimSpace(req.FromEmail)
	if req.Host == "" || req.Port <= 0 || req.FromEmail == "" {
		return nil, newError(KindMalformedInput, "SMTP host, port and from email are required.")
	}

	enableSSL := true
	if req.EnableSSL != nil {
		enableSSL = *req.EnableSSL
	}
	fromName := strings.TrimSpace(req.FromName)
	if fromName == "" {
		fromName = defaultSMTPFromName
	}

	values := map[string]string{
		models.SettingSMTPHost:      req.Host,
		models.SettingSMTPPort:      strconv.Itoa(req.Port),
		models.SettingSMTPUsername:  strings.TrimSpace(req.Username),
		models.SettingSMTPFromEmail: req.FromEmail,
		models.SettingSMTPFromName:  fromName,
		models.SettingSMTPEnableSSL: strconv.FormatBool(enableSSL),
	}
	if req.Password != "" {
		values[models.SettingSMTPPassword] = req.Password
	}
	if err := s.store.UpsertSettings(ctx, values, &updatedBy); err != nil {
		return nil, fmt.Errorf("failed to save smtp settings: %w", err)
	}

	settings, err := s.SMTP(ctx)
	if err != nil {
		return nil, err
	}
	settings.Password = ""
	return settings, nil
}

// PluginSMTP hands the platform mail settings, password included, to an active
// email plugin license.
func (s *SettingsService) PluginSMTP(ctx context.Context, licenseKey string) (*SMTPSettings, error) {
	key := strings.TrimSpace(licenseKey)
	if key == "" {
		return nil, newError(KindMalformedInput, "License key is required.")
	}

	license, err := s.store.FindLicenseByKey(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindUnauthorized, "Invalid email plugin license.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load license: %w", err)
	}
	if license.KeyPrefix != models.KeyPrefixEmail {
		return nil, newError(KindUnauthorized, "Invalid email plugin license.")
	}
	if license.IsExpiredAt(s.now()) || license.Status != models.LicenseStatusActive {
		return nil, newError(KindExpired, "License not active.")
	}

	settings, err := s.SMTP(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.Configured() {
		return nil, newError(KindNotFound, "SMTP config is not configured on platform.")
	}
	return settings, nil
}
