// internal/repository/gorm_admin.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/verifyhub/internal/models"
)

func (s *GormStore) GetSettings(ctx context.Context, keys ...string) (map[string]string, error) {
	var settings []models.PlatformSetting
	query := s.conn(ctx)
	if len(keys) > 0 {
		query = query.Where("key IN ?", keys)
	}
	if err := query.Find(&settings).Error; err != nil {
		return nil, err
	}

	values := make(map[string]string, len(settings))
	for _, setting := range settings {
		values[setting.Key] = setting.Value
	}
	return values, nil
}

func (s *GormStore) UpsertSettings(ctx context.Context, values map[string]string, updatedBy *uuid.UUID) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			setting := models.PlatformSetting{Key: key, Value: value, UpdatedBy: updatedBy}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
			}).Create(&setting).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) PlatformStats(ctx context.Context, since time.Time) (PlatformStats, error) {
	var stats PlatformStats
	db := s.conn(ctx)

	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.License{}).Count(&stats.TotalLicenses).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.License{}).Where("status = ?", models.LicenseStatusActive).Count(&stats.ActiveLicenses).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.TelemetryRecord{}).Count(&stats.TotalTelemetryRecords).Error; err != nil {
		return stats, err
	}
	err := db.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusCompleted).
		Select("COALESCE(SUM(amount_usd), 0)").
		Scan(&stats.TotalRevenue).Error
	if err != nil {
		return stats, err
	}
	err = db.Model(&models.Order{}).
		Where("status = ? AND created_at >= ?", models.OrderStatusCompleted, since).
		Count(&stats.OrdersThisMonth).Error
	return stats, err
}

func (s *GormStore) DashboardStats(ctx context.Context, userID uuid.UUID, now, since time.Time) (DashboardStats, error) {
	var stats DashboardStats
	db := s.conn(ctx)
	owned := func() *gorm.DB {
		return s.conn(ctx).Model(&models.License{}).Select("id").Where("user_id = ?", userID)
	}

	if err := db.Model(&models.License{}).Where("user_id = ?", userID).Count(&stats.TotalLicenses).Error; err != nil {
		return stats, err
	}
	err := db.Model(&models.License{}).
		Where("user_id = ? AND status = ? AND expires_at >= ?", userID, models.LicenseStatusActive, now).
		Count(&stats.ActiveLicenses).Error
	if err != nil {
		return stats, err
	}
	err = db.Model(&models.License{}).
		Where("user_id = ? AND expires_at < ?", userID, now).
		Count(&stats.ExpiredLicenses).Error
	if err != nil {
		return stats, err
	}
	if err := db.Model(&models.TelemetryRecord{}).Where("license_id IN (?)", owned()).Count(&stats.TotalVerifications).Error; err != nil {
		return stats, err
	}
	err = db.Model(&models.TelemetryRecord{}).
		Where("license_id IN (?) AND received_at >= ?", owned(), since).
		Count(&stats.VerificationsThisMonth).Error
	return stats, err
}

func (s *GormStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return s.conn(ctx).Create(log).Error
}
