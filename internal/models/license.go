// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type License struct {
	BaseModel
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID  `json:"product_id" gorm:"type:uuid;not null;index"`
	PlanID    uuid.UUID  `json:"plan_id" gorm:"type:uuid;not null;index"`
	OrderID   *uuid.UUID `json:"order_id" gorm:"type:uuid"`

	Key       string        `json:"key" gorm:"uniqueIndex;size:64;not null"`
	KeyPrefix string        `json:"key_prefix" gorm:"size:8;not null"`
	Status    LicenseStatus `json:"status" gorm:"type:varchar(20);not null;default:'Active';index"`
	IssuedAt  time.Time     `json:"issued_at" gorm:"not null"`
	ExpiresAt time.Time     `json:"expires_at" gorm:"not null;index"`

	// Installation. An empty InstalledDomain means the license is unbound.
	InstalledDomain string     `json:"installed_domain,omitempty" gorm:"size:255;index"`
	ActivatedAt     *time.Time `json:"activated_at"`
	InstalledBy     string     `json:"installed_by,omitempty" gorm:"size:255"`
	PluginVersion   string     `json:"plugin_version,omitempty" gorm:"size:50"`
	ActivationCount int        `json:"activation_count" gorm:"not null;default:0"`

	// Usage counters, reset lazily once UsageResetDate has passed.
	VerificationsThisMonth int       `json:"verifications_this_month" gorm:"not null;default:0"`
	UsageResetDate         time.Time `json:"usage_reset_date" gorm:"not null"`

	// Relationships
	User      *User             `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Product   *Product          `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Plan      *Plan             `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
	Telemetry []TelemetryRecord `json:"-" gorm:"foreignKey:LicenseID;constraint:OnDelete:CASCADE"`
}

func (l *License) IsExpiredAt(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// DaysLeftAt returns whole days until expiry, floored, never negative.
func (l *License) DaysLeftAt(now time.Time) int {
	days := int(l.ExpiresAt.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func (l *License) Channel() Channel {
	return ChannelForPrefix(l.KeyPrefix)
}

// IsBoundElsewhere reports whether the license is bound to a domain other than domain.
func (l *License) IsBoundElsewhere(domain string) bool {
	return l.InstalledDomain != "" && l.InstalledDomain != domain
}
