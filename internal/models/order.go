// internal/models/order.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Order records a plan purchase. Payment is not processed; orders complete on creation.
type Order struct {
	BaseModel
	UserID      uuid.UUID   `json:"user_id" gorm:"type:uuid;not null;index"`
	PlanID      uuid.UUID   `json:"plan_id" gorm:"type:uuid;not null;index"`
	AmountUSD   float64     `json:"amount_usd" gorm:"type:decimal(10,2);not null"`
	Status      OrderStatus `json:"status" gorm:"type:varchar(20);default:'Pending';index"`
	CompletedAt *time.Time  `json:"completed_at"`

	// Relationships
	Plan *Plan `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
}
