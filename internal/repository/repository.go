// internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/utils"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// BindDomainParams describes one activation write. The bind only succeeds while the
// license is Active, unexpired at Now, and (when SingleDomain) unbound or already
// bound to Domain.
type BindDomainParams struct {
	LicenseID     uuid.UUID
	Domain        string
	InstalledBy   string
	PluginVersion string
	SingleDomain  bool
	Now           time.Time
}

// PlatformKeyUpdate overrides key, bound domain and optionally expiry of a license.
type PlatformKeyUpdate struct {
	LicenseID uuid.UUID
	Key       string
	Domain    string
	ExpiresAt *time.Time
}

type LicenseFilter struct {
	UserID *uuid.UUID
	Status models.LicenseStatus
	Search string
}

// TelemetryFilter narrows telemetry listings. Domain is a substring match.
type TelemetryFilter struct {
	UserID    *uuid.UUID
	LicenseID *uuid.UUID
	Domain    string
}

type PlatformStats struct {
	TotalUsers            int64   `json:"total_users"`
	TotalLicenses         int64   `json:"total_licenses"`
	ActiveLicenses        int64   `json:"active_licenses"`
	TotalTelemetryRecords int64   `json:"total_telemetry_records"`
	TotalRevenue          float64 `json:"total_revenue"`
	OrdersThisMonth       int64   `json:"orders_this_month"`
}

type DashboardStats struct {
	TotalLicenses          int64 `json:"total_licenses"`
	ActiveLicenses         int64 `json:"active_licenses"`
	ExpiredLicenses        int64 `json:"expired_licenses"`
	TotalVerifications     int64 `json:"total_verifications"`
	VerificationsThisMonth int64 `json:"verifications_this_month"`
}

type CatalogRepository interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	SavePlan(ctx context.Context, plan *models.Plan) error
}

// LicenseRepository is the persistence contract of the license lifecycle. Every
// conditional write reports whether it matched a row so callers never need a
// read-modify-write cycle.
//
// ResetUsage only matches while usage_reset_date < now. IncrementUsage only
// matches an Active, unexpired license and does not look at quota.
type LicenseRepository interface {
	LicenseKeyExists(ctx context.Context, key string) (bool, error)
	CreateLicense(ctx context.Context, license *models.License) error
	FindLicenseByKey(ctx context.Context, key string) (*models.License, error)
	FindLicenseByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	ListLicensesByUser(ctx context.Context, userID uuid.UUID) ([]models.License, error)
	ListLicenses(ctx context.Context, filter LicenseFilter, params utils.PaginationParams) ([]models.License, int64, error)
	FindPlatformLicense(ctx context.Context, userID, productID uuid.UUID) (*models.License, error)

	BindDomain(ctx context.Context, params BindDomainParams) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	ResetUsage(ctx context.Context, id uuid.UUID, now, nextReset time.Time) (bool, error)
	IncrementUsage(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from []models.LicenseStatus, to models.LicenseStatus) (bool, error)
	ExpireOverdue(ctx context.Context, now time.Time, batchSize int) (int64, error)
	UpdatePlatformKey(ctx context.Context, update PlatformKeyUpdate) error
}

type TelemetryRepository interface {
	CreateTelemetry(ctx context.Context, record *models.TelemetryRecord) error
	ListTelemetry(ctx context.Context, filter TelemetryFilter, params utils.PaginationParams) ([]models.TelemetryRecord, int64, error)
	ExportTelemetry(ctx context.Context, filter TelemetryFilter, limit int) ([]models.TelemetryRecord, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	SaveUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, params utils.PaginationParams) ([]models.User, int64, error)
}

type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// ConsumeRefreshToken revokes the token and returns it, only if it was usable at
	// now. A second consume of the same token returns ErrNotFound.
	ConsumeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
}

type SettingRepository interface {
	GetSettings(ctx context.Context, keys ...string) (map[string]string, error)
	UpsertSettings(ctx context.Context, values map[string]string, updatedBy *uuid.UUID) error
}

type StatsRepository interface {
	PlatformStats(ctx context.Context, since time.Time) (PlatformStats, error)
	DashboardStats(ctx context.Context, userID uuid.UUID, now, since time.Time) (DashboardStats, error)
}

type AuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Store groups every repository behind one handle. Transaction runs fn against a
// Store bound to a single transaction; fn's error rolls everything back.
type Store interface {
	CatalogRepository
	LicenseRepository
	TelemetryRepository
	UserRepository
	TokenRepository
	OrderRepository
	SettingRepository
	StatsRepository
	AuditRepository

	Transaction(ctx context.Context, fn func(tx Store) error) error
}
