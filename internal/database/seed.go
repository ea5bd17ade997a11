// internal/database/seed.go
package database

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/verifyhub/internal/models"
)

var (
	EmailProductID  = uuid.MustParse("11111111-0000-0000-0000-000000000001")
	MobileProductID = uuid.MustParse("11111111-0000-0000-0000-000000000002")
)

// CatalogSeed returns the default products with their plans attached.
func CatalogSeed() []models.Product {
	plan := func(id string, productID uuid.UUID, name string, price float64, domains, perMonth int, popular bool, features ...string) models.Plan {
		return models.Plan{
			BaseModel:                models.BaseModel{ID: uuid.MustParse(id)},
			ProductID:                productID,
			Name:                     name,
			PriceUSD:                 price,
			Cycle:                    models.BillingCycleAnnual,
			DurationDays:             365,
			MaxDomains:               domains,
			MaxVerificationsPerMonth: perMonth,
			IsPopular:                popular,
			Features:                 pq.StringArray(features),
		}
	}

	return []models.Product{
		{
			BaseModel:   models.BaseModel{ID: EmailProductID},
			Name:        "Email Verify Plugin",
			Slug:        models.ProductSlugEmail,
			Description: "Magic link + 6-digit code email verification with device fingerprinting.",
			Icon:        "✉",
			IsActive:    true,
			Plans: []models.Plan{
				plan("22222222-0000-0000-0000-000000000001", EmailProductID, "Starter", 29, 1, 500, false,
					"Up to 500 verifications/mo", "1 domain", "Email magic link + code", "Basic fingerprinting", "Email support"),
				plan("22222222-0000-0000-0000-000000000002", EmailProductID, "Pro", 79, 3, 5000, true,
					"Up to 5,000 verifications/mo", "3 domains", "Full device fingerprinting", "IP geolocation + risk scoring",
					"GPS capture", "Canvas & WebGL fingerprint", "Priority support", "Admin dashboard access"),
				plan("22222222-0000-0000-0000-000000000003", EmailProductID, "Enterprise", 199, 10, 50000, false,
					"Unlimited verifications", "10 domains", "All Pro features", "Telemetry dashboard", "CSV / JSON export",
					"SLA + dedicated support", "White-label option"),
			},
		},
		{
			BaseModel:   models.BaseModel{ID: MobileProductID},
			Name:        "Mobile QR Plugin",
			Slug:        models.ProductSlugMobile,
			Description: "QR-scan mobile verification with real-time GPS & sensor telemetry.",
			Icon:        "📱",
			IsActive:    true,
			Plans: []models.Plan{
				plan("22222222-0000-0000-0000-000000000004", MobileProductID, "Starter", 39, 1, 200, false,
					"Up to 200 QR sessions/mo", "1 domain", "Real-time GPS", "Device & sensor telemetry", "Email support"),
				plan("22222222-0000-0000-0000-000000000005", MobileProductID, "Pro", 99, 3, 2000, true,
					"Up to 2,000 QR sessions/mo", "3 domains", "Real-time push", "GPS + motion sensor capture",
					"Full network analysis", "Risk scoring", "Admin dashboard"),
				plan("22222222-0000-0000-0000-000000000006", MobileProductID, "Enterprise", 249, 10, 20000, false,
					"Unlimited QR sessions", "10 domains", "All Pro features", "Central telemetry dashboard",
					"Dedicated telemetry stream", "White-label ready", "Priority SLA"),
			},
		},
	}
}

// SeedInitialData inserts the product catalog. Existing rows are left untouched so
// admin edits to plans survive restarts.
func SeedInitialData(db *gorm.DB) error {
	logrus.Info("Seeding initial data...")

	for _, product := range CatalogSeed() {
		plans := product.Plans
		product.Plans = nil

		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&product).Error; err != nil {
			return fmt.Errorf("failed to seed product %s: %w", product.Slug, err)
		}
		for i := range plans {
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&plans[i]).Error; err != nil {
				return fmt.Errorf("failed to seed plan %s/%s: %w", product.Slug, plans[i].Name, err)
			}
		}
	}

	logrus.Info("Initial data seeding completed")
	return nil
}
