// internal/models/product.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Product struct {
	BaseModel
	Name        string `json:"name" gorm:"size:255;not null"`
	Slug        string `json:"slug" gorm:"uniqueIndex;size:100;not null"`
	Description string `json:"description" gorm:"type:text"`
	Icon        string `json:"icon" gorm:"size:32"`
	IsActive    bool   `json:"is_active" gorm:"default:true;index"`

	// Relationships
	Plans []Plan `json:"plans,omitempty" gorm:"foreignKey:ProductID"`
}

// KeyPrefix returns the license key prefix for keys issued against this product.
func (p *Product) KeyPrefix() string {
	if p.Slug == ProductSlugEmail {
		return KeyPrefixEmail
	}
	return KeyPrefixMobile
}

type Plan struct {
	BaseModel
	ProductID                uuid.UUID      `json:"product_id" gorm:"type:uuid;not null;index"`
	Name                     string         `json:"name" gorm:"size:100;not null"`
	PriceUSD                 float64        `json:"price_usd" gorm:"type:decimal(10,2);not null"`
	Cycle                    BillingCycle   `json:"cycle" gorm:"type:varchar(20);default:'Annual'"`
	DurationDays             int            `json:"duration_days" gorm:"not null;default:365"`
	MaxDomains               int            `json:"max_domains" gorm:"not null;default:1"`
	MaxVerificationsPerMonth int            `json:"max_verifications_per_month" gorm:"not null;default:1000"`
	IsPopular                bool           `json:"is_popular" gorm:"default:false"`
	Features                 pq.StringArray `json:"features" gorm:"type:text[]"`

	// Relationships
	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}
