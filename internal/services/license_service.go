// internal/services/license_service.go
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
	"github.com/javajoker/verifyhub/internal/metrics"
	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/repository"
	"github.com/javajoker/verifyhub/internal/utils"
)

// UnlimitedVerifications is reported as the remaining quota when a license has no plan.
const UnlimitedVerifications = 999999

const (
	StatusNotFound       = "NotFound"
	StatusDomainMismatch = "DomainMismatch"
)

type LicenseService struct {
	store       repository.Store
	plugins     *utils.PluginTokenIssuer
	cfg         config.LicensingConfig
	now         func() time.Time
	generateKey func(prefix string) (string, error)
}

type CreateLicenseParams struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	PlanID    uuid.UUID
	OrderID   *uuid.UUID
}

type ActivateRequest struct {
	LicenseKey    string `json:"licenseKey" validate:"required,license_key"`
	Domain        string `json:"domain" validate:"required,domain"`
	PluginVersion string `json:"pluginVersion" validate:"max=50"`
	ServerInfo    string `json:"serverInfo" validate:"max=255"`
}

type ValidateRequest struct {
	LicenseKey string `json:"licenseKey" validate:"required"`
	Domain     string `json:"domain"`
}

type ValidationResult struct {
	Valid             bool   `json:"valid"`
	Status            string `json:"status"`
	DaysLeft          int    `json:"daysLeft"`
	VerificationsLeft int    `json:"verificationsLeft"`
	Error             string `json:"error,omitempty"`
}

type PluginToken struct {
	Token     string    `json:"plugin_token"`
	ExpiresAt time.Time `json:"expires_at"`
	Domain    string    `json:"domain"`
}

// LicenseView is a license with its derived fields computed at read time.
type LicenseView struct {
	ID                     uuid.UUID            `json:"id"`
	Key                    string               `json:"key"`
	KeyPrefix              string               `json:"key_prefix"`
	ProductName            string               `json:"product_name"`
	PlanName               string               `json:"plan_name"`
	Status                 models.LicenseStatus `json:"status"`
	IssuedAt               time.Time            `json:"issued_at"`
	ExpiresAt              time.Time            `json:"expires_at"`
	DaysLeft               int                  `json:"days_left"`
	IsExpired              bool                 `json:"is_expired"`
	InstalledDomain        string               `json:"installed_domain,omitempty"`
	ActivatedAt            *time.Time           `json:"activated_at"`
	ActivationCount        int                  `json:"activation_count"`
	VerificationsThisMonth int                  `json:"verifications_this_month"`
	MaxVerifications       int                  `json:"max_verifications_per_month"`
	MaxDomains             int                  `json:"max_domains"`
	UserEmail              string               `json:"user_email,omitempty"`
}

// effectiveState is what a license looks like at now once lazy transitions apply.
type effectiveState struct {
	expired       bool
	statusChanged bool
	usageReset    bool
	nextResetDate time.Time
}

func deriveEffectiveState(license *models.License, now time.Time) effectiveState {
	var st effectiveState
	if license.IsExpiredAt(now) {
		st.expired = true
		st.statusChanged = license.Status == models.LicenseStatusActive
	}
	if now.After(license.UsageResetDate) {
		st.usageReset = true
		st.nextResetDate = now.AddDate(0, 1, 0)
	}
	return st
}

func NewLicenseService(store repository.Store, plugins *utils.PluginTokenIssuer, cfg config.LicensingConfig) *LicenseService {
	if cfg.MaxKeyGenerationTries < 1 {
		cfg.MaxKeyGenerationTries = 5
	}
	if cfg.SweepBatchSize < 1 {
		cfg.SweepBatchSize = 500
	}
	return &LicenseService{
		store:       store,
		plugins:     plugins,
		cfg:         cfg,
		now:         time.Now,
		generateKey: utils.GenerateLicenseKey,
	}
}

func (s *LicenseService) Create(ctx context.Context, params CreateLicenseParams) (*models.License, error) {
	return s.createIn(ctx, s.store, params)
}

func (s *LicenseService) createIn(ctx context.Context, store repository.Store, params CreateLicenseParams) (*models.License, error) {
	product, err := store.FindProduct(ctx, params.ProductID)
	if err != nil {
		return nil, s.lookupError(err, "product not found")
	}
	plan, err := store.FindPlan(ctx, params.PlanID)
	if err != nil {
		return nil, s.lookupError(err, "plan not found")
	}
	if plan.ProductID != product.ID {
		return nil, newError(KindNotFound, "plan not found for product")
	}

	prefix := product.KeyPrefix()
	key, err := s.uniqueKey(ctx, store, prefix)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	license := &models.License{
		UserID:         params.UserID,
		ProductID:      product.ID,
		PlanID:         plan.ID,
		OrderID:        params.OrderID,
		Key:            key,
		KeyPrefix:      prefix,
		Status:         models.LicenseStatusActive,
		IssuedAt:       now,
		ExpiresAt:      now.AddDate(0, 0, plan.DurationDays),
		UsageResetDate: now.AddDate(0, 1, 0),
	}
	if err := store.CreateLicense(ctx, license); err != nil {
		return nil, fmt.Errorf("failed to create license: %w", err)
	}
	license.Plan = plan
	license.Product = product

	logrus.WithFields(logrus.Fields{
		"license_id": license.ID,
		"key":        utils.MaskLicenseKey(key),
		"user_id":    params.UserID,
	}).Info("License issued")
	return license, nil
}

func (s *LicenseService) uniqueKey(ctx context.Context, store repository.Store, prefix string) (string, error) {
	for attempt := 0; attempt < s.cfg.MaxKeyGenerationTries; attempt++ {
		key, err := s.generateKey(prefix)
		if err != nil {
			return "", fmt.Errorf("failed to generate license key: %w", err)
		}
		exists, err := store.LicenseKeyExists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to check license key: %w", err)
		}
		if !exists {
			return key, nil
		}
		logrus.WithField("attempt", attempt+1).Warn("License key collision, regenerating")
	}
	return "", fmt.Errorf("failed to generate a unique license key after %d attempts", s.cfg.MaxKeyGenerationTries)
}

// Activate binds the license to the calling domain. Under a single-domain plan a
// license bound elsewhere fails with DomainConflict; the store re-checks the bound
// domain inside the write so racing activations cannot both succeed.
func (s *LicenseService) Activate(ctx context.Context, req ActivateRequest) (*models.License, error) {
	domain := utils.NormalizeDomain(req.Domain)
	if domain == "" {
		return nil, newError(KindMalformedInput, "Invalid domain.")
	}
	key := strings.TrimSpace(req.LicenseKey)
	if key == "" {
		return nil, newError(KindMalformedInput, "License key is required.")
	}

	license, err := s.store.FindLicenseByKey(ctx, key)
	if err != nil {
		metrics.Activations.WithLabelValues("not_found").Inc()
		return nil, s.lookupError(err, "License key not found.")
	}

	now := s.now()
	if err := s.checkActivatable(ctx, license, domain, now); err != nil {
		return nil, err
	}

	bound, err := s.store.BindDomain(ctx, repository.BindDomainParams{
		LicenseID:     license.ID,
		Domain:        domain,
		InstalledBy:   strings.TrimSpace(req.ServerInfo),
		PluginVersion: strings.TrimSpace(req.PluginVersion),
		SingleDomain:  singleDomain(license),
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bind license domain: %w", err)
	}

	current, err := s.store.FindLicenseByID(ctx, license.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload license: %w", err)
	}
	if !bound {
		// Lost a race: report whatever now blocks the bind.
		if err := s.checkActivatable(ctx, current, domain, now); err != nil {
			return nil, err
		}
		metrics.Activations.WithLabelValues("invalid_state").Inc()
		return nil, newError(KindInvalidState, "License could not be activated.")
	}

	metrics.Activations.WithLabelValues("activated").Inc()
	logrus.WithFields(logrus.Fields{
		"license_id":       current.ID,
		"key":              utils.MaskLicenseKey(current.Key),
		"domain":           domain,
		"activation_count": current.ActivationCount,
	}).Info("License activated")
	return current, nil
}

func (s *LicenseService) checkActivatable(ctx context.Context, license *models.License, domain string, now time.Time) error {
	switch license.Status {
	case models.LicenseStatusRevoked:
		metrics.Activations.WithLabelValues("revoked").Inc()
		return newError(KindInvalidState, "License has been revoked.")
	case models.LicenseStatusSuspended:
		metrics.Activations.WithLabelValues("suspended").Inc()
		return newError(KindInvalidState, "License is suspended.")
	}

	state := deriveEffectiveState(license, now)
	if state.expired {
		if err := s.persistExpiry(ctx, license, state); err != nil {
			return err
		}
		metrics.Activations.WithLabelValues("expired").Inc()
		return newError(KindExpired, "License has expired. Please renew.")
	}
	if license.Status != models.LicenseStatusActive {
		metrics.Activations.WithLabelValues("invalid_state").Inc()
		return newError(KindInvalidState, "License is not active.")
	}

	if singleDomain(license) && license.IsBoundElsewhere(domain) {
		metrics.Activations.WithLabelValues("domain_conflict").Inc()
		return &Error{
			Kind:    KindDomainConflict,
			Message: fmt.Sprintf("This license is bound to domain '%s'. Upgrade for multi-domain support.", license.InstalledDomain),
			Domain:  license.InstalledDomain,
		}
	}
	return nil
}

func singleDomain(license *models.License) bool {
	return license.Plan != nil && license.Plan.MaxDomains == 1
}

// Validate never returns a domain error for a failed check; the outcome is carried
// in the result. err is only set for store failures.
func (s *LicenseService) Validate(ctx context.Context, req ValidateRequest) (*ValidationResult, error) {
	result, err := s.validate(ctx, req)
	if err == nil {
		metrics.Validations.WithLabelValues(result.Status).Inc()
	}
	return result, err
}

func (s *LicenseService) validate(ctx context.Context, req ValidateRequest) (*ValidationResult, error) {
	key := strings.TrimSpace(req.LicenseKey)
	license, err := s.store.FindLicenseByKey(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return &ValidationResult{Valid: false, Status: StatusNotFound, Error: "License not found."}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load license: %w", err)
	}

	now := s.now()
	state := deriveEffectiveState(license, now)
	if state.expired {
		if err := s.persistExpiry(ctx, license, state); err != nil {
			return nil, err
		}
		return &ValidationResult{
			Valid:  false,
			Status: string(models.LicenseStatusExpired),
			Error:  "License expired. Please renew your subscription.",
		}, nil
	}
	if license.Status != models.LicenseStatusActive {
		return &ValidationResult{Valid: false, Status: string(license.Status), Error: "License is not active."}, nil
	}
	if license.IsBoundElsewhere(utils.NormalizeDomain(req.Domain)) {
		return &ValidationResult{Valid: false, Status: StatusDomainMismatch, Error: "Domain mismatch."}, nil
	}

	if state.usageReset {
		if _, err := s.store.ResetUsage(ctx, license.ID, now, state.nextResetDate); err != nil {
			return nil, fmt.Errorf("failed to reset monthly usage: %w", err)
		}
		if license, err = s.store.FindLicenseByID(ctx, license.ID); err != nil {
			return nil, fmt.Errorf("failed to reload license: %w", err)
		}
	}

	return &ValidationResult{
		Valid:             true,
		Status:            string(models.LicenseStatusActive),
		DaysLeft:          license.DaysLeftAt(now),
		VerificationsLeft: verificationsLeft(license),
	}, nil
}

func verificationsLeft(license *models.License) int {
	limit := UnlimitedVerifications
	if license.Plan != nil {
		limit = license.Plan.MaxVerificationsPerMonth
	}
	if left := limit - license.VerificationsThisMonth; left > 0 {
		return left
	}
	return 0
}

// IncrementUsage counts one verification. Quota is advisory: a license over its
// monthly allowance still increments.
func (s *LicenseService) IncrementUsage(ctx context.Context, key string) (bool, error) {
	license, err := s.store.FindLicenseByKey(ctx, strings.TrimSpace(key))
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load license: %w", err)
	}
	return s.incrementUsageIn(ctx, s.store, license)
}

func (s *LicenseService) incrementUsageIn(ctx context.Context, store repository.Store, license *models.License) (bool, error) {
	now := s.now()
	state := deriveEffectiveState(license, now)
	if state.expired || license.Status != models.LicenseStatusActive {
		metrics.UsageIncrements.WithLabelValues(metrics.Bool(false)).Inc()
		return false, nil
	}
	if state.usageReset {
		if _, err := store.ResetUsage(ctx, license.ID, now, state.nextResetDate); err != nil {
			return false, fmt.Errorf("failed to reset monthly usage: %w", err)
		}
	}

	applied, err := store.IncrementUsage(ctx, license.ID, now)
	if err != nil {
		return false, fmt.Errorf("failed to increment usage: %w", err)
	}
	metrics.UsageIncrements.WithLabelValues(metrics.Bool(applied)).Inc()
	return applied, nil
}

// ExpireOverdue flips every Active license past its expiry to Expired.
func (s *LicenseService) ExpireOverdue(ctx context.Context) (int64, error) {
	count, err := s.store.ExpireOverdue(ctx, s.now(), s.cfg.SweepBatchSize)
	if err != nil {
		return count, fmt.Errorf("failed to expire overdue licenses: %w", err)
	}
	return count, nil
}

func (s *LicenseService) persistExpiry(ctx context.Context, license *models.License, state effectiveState) error {
	if !state.statusChanged {
		return nil
	}
	if _, err := s.store.MarkExpired(ctx, license.ID); err != nil {
		return fmt.Errorf("failed to mark license expired: %w", err)
	}
	license.Status = models.LicenseStatusExpired
	logrus.WithFields(logrus.Fields{
		"license_id": license.ID,
		"key":        utils.MaskLicenseKey(license.Key),
	}).Info("License expired on access")
	return nil
}

// IssuePluginToken signs a plugin token bound to the license's current domain.
func (s *LicenseService) IssuePluginToken(license *models.License) (*PluginToken, error) {
	token, err := s.plugins.Issue(license.ID, license.Key, license.InstalledDomain, license.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sign plugin token: %w", err)
	}
	return &PluginToken{Token: token, ExpiresAt: license.ExpiresAt, Domain: license.InstalledDomain}, nil
}

// PluginTokenFor issues a plugin token for a license owned by userID.
func (s *LicenseService) PluginTokenFor(ctx context.Context, userID, licenseID uuid.UUID) (*PluginToken, error) {
	license, err := s.store.FindLicenseByID(ctx, licenseID)
	if err != nil {
		return nil, s.lookupError(err, "License not found.")
	}
	if license.UserID != userID {
		return nil, newError(KindNotFound, "License not found.")
	}

	state := deriveEffectiveState(license, s.now())
	if state.expired {
		if err := s.persistExpiry(ctx, license, state); err != nil {
			return nil, err
		}
		return nil, newError(KindExpired, "License expired.")
	}
	if license.Status != models.LicenseStatusActive {
		return nil, newError(KindInvalidState, "License is not active.")
	}
	return s.IssuePluginToken(license)
}

func (s *LicenseService) ListUserLicenses(ctx context.Context, userID uuid.UUID) ([]LicenseView, error) {
	licenses, err := s.store.ListLicensesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	return s.views(licenses), nil
}

func (s *LicenseService) ListLicenses(ctx context.Context, filter repository.LicenseFilter, params utils.PaginationParams) ([]LicenseView, int64, error) {
	licenses, total, err := s.store.ListLicenses(ctx, filter, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list licenses: %w", err)
	}
	return s.views(licenses), total, nil
}

func (s *LicenseService) views(licenses []models.License) []LicenseView {
	now := s.now()
	views := make([]LicenseView, 0, len(licenses))
	for i := range licenses {
		views = append(views, newLicenseView(&licenses[i], now))
	}
	return views
}

func newLicenseView(license *models.License, now time.Time) LicenseView {
	view := LicenseView{
		ID:                     license.ID,
		Key:                    license.Key,
		KeyPrefix:              license.KeyPrefix,
		Status:                 license.Status,
		IssuedAt:               license.IssuedAt,
		ExpiresAt:              license.ExpiresAt,
		DaysLeft:               license.DaysLeftAt(now),
		IsExpired:              license.IsExpiredAt(now),
		InstalledDomain:        license.InstalledDomain,
		ActivatedAt:            license.ActivatedAt,
		ActivationCount:        license.ActivationCount,
		VerificationsThisMonth: license.VerificationsThisMonth,
		MaxVerifications:       UnlimitedVerifications,
	}
	if view.IsExpired && view.Status == models.LicenseStatusActive {
		view.Status = models.LicenseStatusExpired
	}
	if license.Product != nil {
		view.ProductName = license.Product.Name
	}
	if license.Plan != nil {
		view.PlanName = license.Plan.Name
		view.MaxVerifications = license.Plan.MaxVerificationsPerMonth
		view.MaxDomains = license.Plan.MaxDomains
	}
	if license.User != nil {
		view.UserEmail = license.User.Email
	}
	return view
}

// Revoke is terminal. Any non-revoked license can be revoked.
func (s *LicenseService) Revoke(ctx context.Context, licenseID uuid.UUID) (*models.License, error) {
	return s.transition(ctx, licenseID,
		[]models.LicenseStatus{models.LicenseStatusActive, models.LicenseStatusSuspended, models.LicenseStatusExpired},
		models.LicenseStatusRevoked)
}

func (s *LicenseService) Suspend(ctx context.Context, licenseID uuid.UUID) (*models.License, error) {
	return s.transition(ctx, licenseID, []models.LicenseStatus{models.LicenseStatusActive}, models.LicenseStatusSuspended)
}

// Reactivate lifts a suspension. Revoked licenses stay revoked.
func (s *LicenseService) Reactivate(ctx context.Context, licenseID uuid.UUID) (*models.License, error) {
	return s.transition(ctx, licenseID, []models.LicenseStatus{models.LicenseStatusSuspended}, models.LicenseStatusActive)
}

func (s *LicenseService) transition(ctx context.Context, licenseID uuid.UUID, from []models.LicenseStatus, to models.LicenseStatus) (*models.License, error) {
	changed, err := s.store.TransitionStatus(ctx, licenseID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to update license status: %w", err)
	}

	license, err := s.store.FindLicenseByID(ctx, licenseID)
	if err != nil {
		return nil, s.lookupError(err, "License not found.")
	}
	if !changed {
		return nil, newError(KindInvalidState, "License is %s and cannot become %s.", license.Status, to)
	}

	logrus.WithFields(logrus.Fields{
		"license_id": license.ID,
		"key":        utils.MaskLicenseKey(license.Key),
		"status":     to,
	}).Info("License status changed")
	return license, nil
}

// lookupError maps a store miss to NotFound and wraps anything else.
func (s *LicenseService) lookupError(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return newError(KindNotFound, "%s", message)
	}
	return fmt.Errorf("%s: %w", strings.TrimSuffix(strings.ToLower(message), "."), err)
}
