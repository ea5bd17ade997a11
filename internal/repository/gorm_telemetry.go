// internal/repository/gorm_telemetry.go
package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/utils"
)

func (s *GormStore) CreateTelemetry(ctx context.Context, record *models.TelemetryRecord) error {
	return translateError(s.conn(ctx).Omit("License").Create(record).Error)
}

func (s *GormStore) telemetryQuery(ctx context.Context, filter TelemetryFilter) *gorm.DB {
	query := s.conn(ctx).Model(&models.TelemetryRecord{})
	if filter.UserID != nil {
		query = query.Where("license_id IN (?)",
			s.conn(ctx).Model(&models.License{}).Select("id").Where("user_id = ?", *filter.UserID))
	}
	if filter.LicenseID != nil {
		query = query.Where("license_id = ?", *filter.LicenseID)
	}
	if filter.Domain != "" {
		query = query.Where("plugin_domain ILIKE ?", "%"+filter.Domain+"%")
	}
	return query
}

func (s *GormStore) ListTelemetry(ctx context.Context, filter TelemetryFilter, params utils.PaginationParams) ([]models.TelemetryRecord, int64, error) {
	var total int64
	if err := s.telemetryQuery(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.TelemetryRecord
	query := utils.ApplySort(s.telemetryQuery(ctx, filter), params, []string{"received_at", "risk_score", "created_at"})
	if err := utils.ApplyPagination(query, params).Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *GormStore) ExportTelemetry(ctx context.Context, filter TelemetryFilter, limit int) ([]models.TelemetryRecord, error) {
	var records []models.TelemetryRecord
	err := s.telemetryQuery(ctx, filter).
		Order("received_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
