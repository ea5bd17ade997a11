// internal/models/telemetry.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// TelemetryRecord is one device/network observation pushed by a plugin. Records are
// append-only.
type TelemetryRecord struct {
	BaseModel
	LicenseID    uuid.UUID `json:"license_id" gorm:"type:uuid;not null;index"`
	SessionID    string    `json:"session_id" gorm:"size:128;index"`
	Channel      Channel   `json:"channel" gorm:"type:varchar(10);not null"`
	PluginDomain string    `json:"plugin_domain" gorm:"size:255;index"`
	ReceivedAt   time.Time `json:"received_at" gorm:"not null;index"`

	IPAddress    *string  `json:"ip_address" gorm:"size:45"`
	CountryCode  *string  `json:"country_code" gorm:"size:8"`
	City         *string  `json:"city" gorm:"size:128"`
	ISP          *string  `json:"isp" gorm:"size:255"`
	IsProxy      *bool    `json:"is_proxy"`
	IsVPN        *bool    `json:"is_vpn"`
	IsTor        *bool    `json:"is_tor"`
	GPSLatitude  *float64 `json:"gps_latitude"`
	GPSLongitude *float64 `json:"gps_longitude"`
	BrowserName  *string  `json:"browser_name" gorm:"size:64"`
	OSName       *string  `json:"os_name" gorm:"size:64"`
	DeviceType   *string  `json:"device_type" gorm:"size:32"`
	IsMobile     *bool    `json:"is_mobile"`
	BatteryLevel *float64 `json:"battery_level"`
	NetworkType  *string  `json:"network_type" gorm:"size:32"`
	CanvasHash   *string  `json:"canvas_hash" gorm:"size:128"`
	RiskScore    *int     `json:"risk_score"`
	UserEmail    *string  `json:"user_email" gorm:"size:255"`
	UserPhone    *string  `json:"user_phone" gorm:"size:32"`
	RawJSON      string   `json:"raw_json" gorm:"type:text;not null;default:'{}'"`

	// Relationships
	License *License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}
