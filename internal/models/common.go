// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns the id client side so callers can use it before commit.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserRole string

const (
	UserRoleCustomer UserRole = "Customer"
	UserRoleAdmin    UserRole = "Admin"
)

type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "Active"
	LicenseStatusExpired   LicenseStatus = "Expired"
	LicenseStatusSuspended LicenseStatus = "Suspended"
	LicenseStatusRevoked   LicenseStatus = "Revoked"
)

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "Monthly"
	BillingCycleAnnual  BillingCycle = "Annual"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusRefunded  OrderStatus = "Refunded"
	OrderStatusFailed    OrderStatus = "Failed"
)

// Channel is the verification flow a plugin serves.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelMobile Channel = "mobile"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelMobile
}

const (
	KeyPrefixEmail  = "EML"
	KeyPrefixMobile = "MOB"

	ProductSlugEmail  = "email-verify"
	ProductSlugMobile = "mobile-qr"
)

// ChannelForPrefix maps a license key prefix to the plugin channel it serves.
func ChannelForPrefix(prefix string) Channel {
	if prefix == KeyPrefixEmail {
		return ChannelEmail
	}
	return ChannelMobile
}
