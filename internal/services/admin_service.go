// internal/services/admin_service.go
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

type AdminService struct {
	store               repository.Store
	licenses            *LicenseService
	worker              *ExpiryWorker
	notificationService *NotificationService
	platform            config.PlatformConfig
	now                 func() time.Time
}

type AdminLicenseFilter struct {
	utils.PaginationParams
	Status models.LicenseStatus `json:"status,omitempty"`
	UserID *uuid.UUID           `json:"user_id,omitempty"`
}

type UpdatePlatformKeyRequest struct {
	Key       string     `json:"key" validate:"required"`
	Domain    string     `json:"domain" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func NewAdminService(store repository.Store, licenses *LicenseService, worker *ExpiryWorker, notificationService *NotificationService, platform config.PlatformConfig) *AdminService {
	return &AdminService{
		store:               store,
		licenses:            licenses,
		worker:              worker,
		notificationService: notificationService,
		platform:            platform,
		now:                 time.Now,
	}
}

func (s *AdminService) GetDashboardStats(ctx context.Context) (repository.PlatformStats, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	stats, err := s.store.PlatformStats(ctx, monthStart)
	if err != nil {
		return stats, fmt.Errorf("failed to load platform stats: %w", err)
	}
	return stats, nil
}

func (s *AdminService) GetUsers(ctx context.Context, params utils.PaginationParams) ([]models.User, int64, error) {
	users, total, err := s.store.ListUsers(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

func (s *AdminService) GetLicenses(ctx context.Context, filter AdminLicenseFilter) ([]LicenseView, int64, error) {
	return s.licenses.ListLicenses(ctx, repository.LicenseFilter{
		UserID: filter.UserID,
		Status: filter.Status,
		Search: filter.Search,
	}, filter.PaginationParams)
}

// ChangeLicenseStatus applies an admin action: revoke, suspend or reactivate.
func (s *AdminService) ChangeLicenseStatus(ctx context.Context, licenseID uuid.UUID, action string, adminID uuid.UUID) (*models.License, error) {
	var (
		license *models.License
		err     error
	)
	switch action {
	case "revoke":
		license, err = s.licenses.Revoke(ctx, licenseID)
	case "suspend":
		license, err = s.licenses.Suspend(ctx, licenseID)
	case "reactivate":
		license, err = s.licenses.Reactivate(ctx, licenseID)
	default:
		return nil, newError(KindMalformedInput, "unknown license action %q", action)
	}
	if err != nil {
		return nil, err
	}

	s.createAuditLog(ctx, adminID, "LICENSE_"+strings.ToUpper(action), "license", &license.ID,
		map[string]interface{}{"status": license.Status})
	s.sendLicenseStatusNotification(license)
	return license, nil
}

// RunExpiryCheck sweeps overdue licenses now, sharing any sweep already running.
func (s *AdminService) RunExpiryCheck(ctx context.Context) (int64, error) {
	return s.worker.RunOnce(ctx)
}

// PlatformKeys lists the lifetime licenses held by the platform owner.
func (s *AdminService) PlatformKeys(ctx context.Context) ([]LicenseView, error) {
	owner, err := s.platformOwner(ctx)
	if err != nil {
		return nil, err
	}
	return s.licenses.ListUserLicenses(ctx, owner.ID)
}

// UpdatePlatformKey overrides the key, bound domain and optionally expiry of a
// platform-owned license. This is the one place a license key changes after issue.
func (s *AdminService) UpdatePlatformKey(ctx context.Context, licenseID uuid.UUID, req UpdatePlatformKeyRequest, adminID uuid.UUID) (*LicenseView, error) {
	owner, err := s.platformOwner(ctx)
	if err != nil {
		return nil, err
	}

	license, err := s.store.FindLicenseByID(ctx, licenseID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && license.UserID != owner.ID) {
		return nil, newError(KindNotFound, "Platform lifetime key not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load license: %w", err)
	}

	key := strings.ToUpper(strings.TrimSpace(req.Key))
	if key == "" {
		return nil, newError(KindMalformedInput, "Key is required.")
	}
	if !strings.HasPrefix(key, license.KeyPrefix+"-") {
		return nil, newError(KindMalformedInput, "Key must start with '%s-'.", license.KeyPrefix)
	}
	if key != license.Key {
		exists, err := s.store.LicenseKeyExists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to check license key: %w", err)
		}
		if exists {
			return nil, newError(KindConflict, "This key already exists.")
		}
	}

	domain := utils.NormalizeDomain(req.Domain)
	if domain == "" {
		return nil, newError(KindMalformedInput, "Invalid domain.")
	}
	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		if !req.ExpiresAt.After(s.now()) {
			return nil, newError(KindMalformedInput, "Expiry must be in the future.")
		}
		utc := req.ExpiresAt.UTC()
		expiresAt = &utc
	}

	err = s.store.UpdatePlatformKey(ctx, repository.PlatformKeyUpdate{
		LicenseID: license.ID,
		Key:       key,
		Domain:    domain,
		ExpiresAt: expiresAt,
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		return nil, newError(KindConflict, "This key already exists.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update platform key: %w", err)
	}

	updated, err := s.store.FindLicenseByID(ctx, license.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload license: %w", err)
	}

	s.createAuditLog(ctx, adminID, "UPDATE_PLATFORM_KEY", "license", &license.ID,
		map[string]interface{}{"key": utils.MaskLicenseKey(key), "domain": domain})
	view := newLicenseView(updated, s.now())
	return &view, nil
}

func (s *AdminService) platformOwner(ctx context.Context) (*models.User, error) {
	owner, err := s.store.FindUserByEmail(ctx, s.platform.OwnerEmail)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "Platform owner not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load platform owner: %w", err)
	}
	return owner, nil
}

func (s *AdminService) createAuditLog(ctx context.Context, userID uuid.UUID, action, resourceType string, resourceID *uuid.UUID, newValues map[string]interface{}) {
	auditLog := &models.AuditLog{
		UserID:       &userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		NewValues:    models.JSONB(newValues),
	}

	if err := s.store.CreateAuditLog(context.WithoutCancel(ctx), auditLog); err != nil {
		logrus.WithError(err).WithField("action", action).Warn("Failed to write audit log")
	}
}

func (s *AdminService) sendLicenseStatusNotification(license *models.License) {
	if s.notificationService == nil {
		return
	}
	changed := *license
	s.notificationService.Notify(func(ctx context.Context) error {
		user, err := s.store.FindUserByID(ctx, changed.UserID)
		if err != nil {
			return err
		}
		return s.notificationService.SendLicenseStatusChanged(ctx, user, &changed)
	})
}
