// internal/repository/gorm_licenses.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/utils"
)

func (s *GormStore) ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	var products []models.Product
	query := s.conn(ctx).Preload("Plans", func(db *gorm.DB) *gorm.DB {
		return db.Order("price_usd ASC")
	})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Order("name ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (s *GormStore) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.conn(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, translateError(err)
	}
	return &product, nil
}

func (s *GormStore) FindPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := s.conn(ctx).Preload("Product").Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, translateError(err)
	}
	return &plan, nil
}

func (s *GormStore) SavePlan(ctx context.Context, plan *models.Plan) error {
	return translateError(s.conn(ctx).Omit("Product").Save(plan).Error)
}

func (s *GormStore) LicenseKeyExists(ctx context.Context, key string) (bool, error) {
	var count int64
	if err := s.conn(ctx).Unscoped().Model(&models.License{}).Where("key = ?", key).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) CreateLicense(ctx context.Context, license *models.License) error {
	return translateError(s.conn(ctx).Omit("User", "Product", "Plan").Create(license).Error)
}

func (s *GormStore) FindLicenseByKey(ctx context.Context, key string) (*models.License, error) {
	var license models.License
	err := s.conn(ctx).
		Preload("Plan").
		Preload("Product").
		Where("key = ?", key).
		First(&license).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &license, nil
}

func (s *GormStore) FindLicenseByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	var license models.License
	err := s.conn(ctx).
		Preload("Plan").
		Preload("Product").
		Where("id = ?", id).
		First(&license).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &license, nil
}

func (s *GormStore) ListLicensesByUser(ctx context.Context, userID uuid.UUID) ([]models.License, error) {
	var licenses []models.License
	err := s.conn(ctx).
		Preload("Plan").
		Preload("Product").
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Find(&licenses).Error
	if err != nil {
		return nil, err
	}
	return licenses, nil
}

func (s *GormStore) ListLicenses(ctx context.Context, filter LicenseFilter, params utils.PaginationParams) ([]models.License, int64, error) {
	query := s.conn(ctx).Model(&models.License{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("key ILIKE ? OR installed_domain ILIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var licenses []models.License
	query = utils.ApplySort(query, params, []string{"issued_at", "expires_at", "created_at", "status"})
	err := utils.ApplyPagination(query, params).
		Preload("User").
		Preload("Product").
		Preload("Plan").
		Find(&licenses).Error
	if err != nil {
		return nil, 0, err
	}
	return licenses, total, nil
}

func (s *GormStore) FindPlatformLicense(ctx context.Context, userID, productID uuid.UUID) (*models.License, error) {
	var license models.License
	err := s.conn(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Order("expires_at DESC").
		First(&license).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &license, nil
}

func (s *GormStore) BindDomain(ctx context.Context, params BindDomainParams) (bool, error) {
	query := s.conn(ctx).Model(&models.License{}).
		Where("id = ?", params.LicenseID).
		Where("status = ?", models.LicenseStatusActive).
		Where("expires_at >= ?", params.Now)
	if params.SingleDomain {
		query = query.Where("(installed_domain = '' OR installed_domain IS NULL OR installed_domain = ?)", params.Domain)
	}

	res := query.Updates(map[string]interface{}{
		"installed_domain": params.Domain,
		"activated_at":     params.Now,
		"installed_by":     params.InstalledBy,
		"plugin_version":   params.PluginVersion,
		"activation_count": gorm.Expr("activation_count + 1"),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.TransitionStatus(ctx, id, []models.LicenseStatus{models.LicenseStatusActive}, models.LicenseStatusExpired)
}

func (s *GormStore) ResetUsage(ctx context.Context, id uuid.UUID, now, nextReset time.Time) (bool, error) {
	res := s.conn(ctx).Model(&models.License{}).
		Where("id = ? AND usage_reset_date < ?", id, now).
		Updates(map[string]interface{}{
			"verifications_this_month": 0,
			"usage_reset_date":         nextReset,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) IncrementUsage(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := s.conn(ctx).Model(&models.License{}).
		Where("id = ? AND status = ? AND expires_at >= ?", id, models.LicenseStatusActive, now).
		UpdateColumn("verifications_this_month", gorm.Expr("verifications_this_month + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.LicenseStatus, to models.LicenseStatus) (bool, error) {
	res := s.conn(ctx).Model(&models.License{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ExpireOverdue flips overdue Active licenses in id batches so a large backlog never
// holds one long lock.
func (s *GormStore) ExpireOverdue(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		batch := s.conn(ctx).Model(&models.License{}).
			Select("id").
			Where("status = ? AND expires_at < ?", models.LicenseStatusActive, now).
			Limit(batchSize)

		res := s.conn(ctx).Model(&models.License{}).
			Where("id IN (?)", batch).
			Update("status", models.LicenseStatusExpired)
		if res.Error != nil {
			return total, res.Error
		}

		total += res.RowsAffected
		if res.RowsAffected < int64(batchSize) {
			return total, nil
		}
	}
}

func (s *GormStore) UpdatePlatformKey(ctx context.Context, update PlatformKeyUpdate) error {
	values := map[string]interface{}{
		"key":              update.Key,
		"key_prefix":       utils.LicenseKeyPrefix(update.Key),
		"installed_domain": update.Domain,
		"status":           models.LicenseStatusActive,
	}
	if update.ExpiresAt != nil {
		values["expires_at"] = update.ExpiresAt.UTC()
	}

	res := s.conn(ctx).Model(&models.License{}).Where("id = ?", update.LicenseID).Updates(values)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
