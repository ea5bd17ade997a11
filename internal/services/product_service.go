// internal/services/product_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/repository"
	"github.com/javajoker/verifyhub/internal/utils"
)

type ProductService struct {
	store repository.Store
}

// UpdatePlanRequest changes the commercial terms of a plan. Nil fields are kept.
type UpdatePlanRequest struct {
	Name                     *string   `json:"name" validate:"omitempty,min=1,max=100"`
	PriceUSD                 *float64  `json:"price_usd" validate:"omitempty,gte=0"`
	DurationDays             *int      `json:"duration_days" validate:"omitempty,gt=0"`
	MaxDomains               *int      `json:"max_domains" validate:"omitempty,gt=0"`
	MaxVerificationsPerMonth *int      `json:"max_verifications_per_month" validate:"omitempty,gt=0"`
	IsPopular                *bool     `json:"is_popular"`
	Features                 *[]string `json:"features"`
}

func NewProductService(store repository.Store) *ProductService {
	return &ProductService{store: store}
}

func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.store.ListProducts(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *ProductService) GetPlan(ctx context.Context, planID uuid.UUID) (*models.Plan, error) {
	plan, err := s.store.FindPlan(ctx, planID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "plan not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return plan, nil
}

// UpdatePlan applies req to a plan. Existing licenses keep their issued expiry;
// quota and domain limits apply to them from the next read.
func (s *ProductService) UpdatePlan(ctx context.Context, planID uuid.UUID, req *UpdatePlanRequest) (*models.Plan, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, newError(KindMalformedInput, "%s", utils.FirstValidationMessage(err))
	}

	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, newError(KindMalformedInput, "plan name is required")
		}
		plan.Name = name
	}
	if req.PriceUSD != nil {
		plan.PriceUSD = *req.PriceUSD
	}
	if req.DurationDays != nil {
		plan.DurationDays = *req.DurationDays
	}
	if req.MaxDomains != nil {
		plan.MaxDomains = *req.MaxDomains
	}
	if req.MaxVerificationsPerMonth != nil {
		plan.MaxVerificationsPerMonth = *req.MaxVerificationsPerMonth
	}
	if req.IsPopular != nil {
		plan.IsPopular = *req.IsPopular
	}
	if req.Features != nil {
		features := make(pq.StringArray, 0, len(*req.Features))
		for _, f := range *req.Features {
			if f = strings.TrimSpace(f); f != "" {
				features = append(features, f)
			}
		}
		plan.Features = features
	}

	plan.Product = nil
	if err := s.store.SavePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to save plan: %w", err)
	}

	logrus.WithFields(logrus.Fields{"plan_id": plan.ID, "name": plan.Name}).Info("Plan updated")
	return plan, nil
}
