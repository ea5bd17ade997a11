// internal/services/bootstrap_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/verifyhub/internal/config"
	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/repository"
	"github.com/javajoker/verifyhub/internal/utils"
)

const (
	platformLicenseYears = 75
	platformInstalledBy  = "platform-bootstrap"
)

// BootstrapService seeds the accounts and licenses the platform itself needs.
type BootstrapService struct {
	store    repository.Store
	licenses *LicenseService
	cfg      *config.Config
	now      func() time.Time
}

func NewBootstrapService(store repository.Store, licenses *LicenseService, cfg *config.Config) *BootstrapService {
	return &BootstrapService{store: store, licenses: licenses, cfg: cfg, now: time.Now}
}

func (s *BootstrapService) Run(ctx context.Context) error {
	if err := s.EnsureAdmin(ctx); err != nil {
		return err
	}
	return s.EnsurePlatformLicenses(ctx)
}

// EnsureAdmin creates the bootstrap admin from ADMIN_EMAIL / ADMIN_PASSWORD. An
// existing account is promoted, and its password reset only when asked.
func (s *BootstrapService) EnsureAdmin(ctx context.Context) error {
	admin := s.cfg.Admin
	if admin.Email == "" || admin.Password == "" {
		return nil
	}

	user, err := s.store.FindUserByEmail(ctx, admin.Email)
	if errors.Is(err, repository.ErrNotFound) {
		user = &models.User{
			Email:    admin.Email,
			Name:     admin.Name,
			Role:     models.UserRoleAdmin,
			IsActive: true,
		}
		if err := user.SetPassword(admin.Password); err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}
		logrus.WithField("email", admin.Email).Info("Bootstrap admin created")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	user.Role = models.UserRoleAdmin
	user.IsActive = true
	if admin.ResetPassword {
		if err := user.SetPassword(admin.Password); err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("failed to update admin: %w", err)
	}
	return nil
}

// EnsurePlatformLicenses gives the platform owner one lifetime license per active
// product, on the product's widest plan, bound to the platform domain.
func (s *BootstrapService) EnsurePlatformLicenses(ctx context.Context) error {
	platform := s.cfg.Platform
	if platform.OwnerEmail == "" {
		return nil
	}
	domain := utils.NormalizeDomain(platform.Domain)
	if domain == "" {
		return fmt.Errorf("PLATFORM_DOMAIN %q is not a valid domain", platform.Domain)
	}

	owner, err := s.ensureOwner(ctx)
	if err != nil {
		return err
	}

	products, err := s.store.ListProducts(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}

	for i := range products {
		product := &products[i]
		plan := widestPlan(product.Plans)
		if plan == nil {
			continue
		}

		if _, err := s.store.FindPlatformLicense(ctx, owner.ID, product.ID); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to look up platform license: %w", err)
		}

		key, err := s.licenses.uniqueKey(ctx, s.store, product.KeyPrefix())
		if err != nil {
			return err
		}
		now := s.now().UTC()
		license := &models.License{
			UserID:          owner.ID,
			ProductID:       product.ID,
			PlanID:          plan.ID,
			Key:             key,
			KeyPrefix:       product.KeyPrefix(),
			Status:          models.LicenseStatusActive,
			IssuedAt:        now,
			ExpiresAt:       now.AddDate(platformLicenseYears, 0, 0),
			InstalledDomain: domain,
			ActivatedAt:     &now,
			InstalledBy:     platformInstalledBy,
			UsageResetDate:  now.AddDate(0, 1, 0),
		}
		if err := s.store.CreateLicense(ctx, license); err != nil {
			return fmt.Errorf("failed to create platform license: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"product": product.Slug,
			"key":     utils.MaskLicenseKey(key),
			"domain":  domain,
		}).Info("Platform lifetime license issued")
	}
	return nil
}

func (s *BootstrapService) ensureOwner(ctx context.Context) (*models.User, error) {
	platform := s.cfg.Platform
	owner, err := s.store.FindUserByEmail(ctx, platform.OwnerEmail)
	if err == nil {
		return owner, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up platform owner: %w", err)
	}

	// The owner never logs in with a password; a random one locks the account.
	password, err := utils.GenerateRandomString(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate owner password: %w", err)
	}
	owner = &models.User{
		Email:    platform.OwnerEmail,
		Name:     platform.OwnerName,
		Role:     models.UserRoleCustomer,
		IsActive: true,
	}
	if err := owner.SetPassword(password); err != nil {
		return nil, fmt.Errorf("failed to hash owner password: %w", err)
	}
	if err := s.store.CreateUser(ctx, owner); err != nil {
		return nil, fmt.Errorf("failed to create platform owner: %w", err)
	}
	return owner, nil
}

// widestPlan prefers more domains, then a higher monthly quota.
func widestPlan(plans []models.Plan) *models.Plan {
	var best *models.Plan
	for i := range plans {
		p := &plans[i]
		if best == nil ||
			p.MaxDomains > best.MaxDomains ||
			(p.MaxDomains == best.MaxDomains && p.MaxVerificationsPerMonth > best.MaxVerificationsPerMonth) {
			best = p
		}
	}
	return best
}
