// internal/services/telemetry_service.go
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

const (
	mineTelemetryPageSize  = 20
	adminTelemetryPageSize = 50
	maxExportRows          = 10000
)

type TelemetryService struct {
	store    repository.Store
	licenses *LicenseService
	cfg      config.LicensingConfig
	now      func() time.Time
}

type PushRequest struct {
	LicenseKey   string `json:"licenseKey" validate:"required"`
	SessionID    string `json:"sessionId" validate:"max=128"`
	Channel      string `json:"channel"`
	SnapshotJSON string `json:"snapshotJson"`
}

func NewTelemetryService(store repository.Store, licenses *LicenseService, cfg config.LicensingConfig) *TelemetryService {
	return &TelemetryService{
		store:    store,
		licenses: licenses,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Push stores one snapshot and counts one verification against the license. The
// record and the usage increment commit together or not at all.
func (s *TelemetryService) Push(ctx context.Context, req PushRequest, caller *utils.PluginClaims) (uuid.UUID, error) {
	record, err := s.push(ctx, req, caller)

	outcome := "stored"
	if err != nil {
		outcome = outcomeLabel(err)
	}
	channel := strings.ToLower(strings.TrimSpace(req.Channel))
	if record != nil {
		channel = string(record.Channel)
	}
	metrics.TelemetryIngested.WithLabelValues(channel, outcome).Inc()

	if err != nil {
		return uuid.Nil, err
	}
	return record.ID, nil
}

func (s *TelemetryService) push(ctx context.Context, req PushRequest, caller *utils.PluginClaims) (*models.TelemetryRecord, error) {
	key := strings.TrimSpace(req.LicenseKey)
	if key == "" {
		return nil, newError(KindMalformedInput, "License key is required.")
	}

	if caller == nil || caller.LicenseKey != key {
		if s.cfg.EnforceTokenBinding {
			return nil, newError(KindUnauthorized, "Plugin token does not match license key.")
		}
		logrus.WithFields(logrus.Fields{
			"key": utils.MaskLicenseKey(key),
		}).Warn("Telemetry pushed with a plugin token for a different license")
	}

	license, err := s.store.FindLicenseByKey(ctx, key)
	if err != nil {
		return nil, s.licenses.lookupError(err, "License not found.")
	}
	if license.IsExpiredAt(s.now()) {
		return nil, newError(KindExpired, "License expired.")
	}
	if license.Status != models.LicenseStatusActive {
		return nil, newError(KindInvalidState, "License is %s.", strings.ToLower(string(license.Status)))
	}

	channel, err := resolveChannel(req.Channel, license)
	if err != nil {
		return nil, err
	}

	record := &models.TelemetryRecord{
		LicenseID:    license.ID,
		SessionID:    strings.TrimSpace(req.SessionID),
		Channel:      channel,
		PluginDomain: license.InstalledDomain,
		ReceivedAt:   s.now().UTC(),
	}
	applySnapshot(req.SnapshotJSON, record)

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.CreateTelemetry(ctx, record); err != nil {
			return fmt.Errorf("failed to store telemetry: %w", err)
		}
		applied, err := s.licenses.incrementUsageIn(ctx, tx, license)
		if err != nil {
			return err
		}
		// The license changed between the lookup and the write.
		if !applied {
			return newError(KindInvalidState, "License is no longer active.")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"license_id": license.ID,
		"record_id":  record.ID,
		"channel":    channel,
		"domain":     license.InstalledDomain,
	}).Debug("Telemetry stored")
	return record, nil
}

func resolveChannel(raw string, license *models.License) (models.Channel, error) {
	channel := models.Channel(strings.ToLower(strings.TrimSpace(raw)))
	if channel == "" {
		return license.Channel(), nil
	}
	if !channel.Valid() {
		return "", newError(KindMalformedInput, "Channel must be email or mobile.")
	}
	return channel, nil
}

// ListMine lists telemetry across every license owned by userID.
func (s *TelemetryService) ListMine(ctx context.Context, userID uuid.UUID, licenseID *uuid.UUID, params utils.PaginationParams) ([]models.TelemetryRecord, int64, error) {
	if params.Limit <= 0 {
		params.Limit = mineTelemetryPageSize
	}
	filter := repository.TelemetryFilter{UserID: &userID, LicenseID: licenseID}
	records, total, err := s.store.ListTelemetry(ctx, filter, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list telemetry: %w", err)
	}
	return records, total, nil
}

// ListAll lists telemetry for every license, optionally narrowed by plugin domain.
func (s *TelemetryService) ListAll(ctx context.Context, domain string, params utils.PaginationParams) ([]models.TelemetryRecord, int64, error) {
	if params.Limit <= 0 {
		params.Limit = adminTelemetryPageSize
	}
	filter := repository.TelemetryFilter{Domain: strings.TrimSpace(domain)}
	records, total, err := s.store.ListTelemetry(ctx, filter, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list telemetry: %w", err)
	}
	return records, total, nil
}

// ForExport returns up to maxExportRows records matching filter, newest first.
func (s *TelemetryService) ForExport(ctx context.Context, filter repository.TelemetryFilter) ([]models.TelemetryRecord, error) {
	records, err := s.store.ExportTelemetry(ctx, filter, maxExportRows)
	if err != nil {
		return nil, fmt.Errorf("failed to export telemetry: %w", err)
	}
	return records, nil
}

func outcomeLabel(err error) string {
	if kind, ok := KindOf(err); ok {
		return string(kind)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "unavailable"
}
