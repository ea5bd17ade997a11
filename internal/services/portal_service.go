// internal/services/portal_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/repository"
)

const dashboardWindow = 30 * 24 * time.Hour

type PortalService struct {
	store         repository.Store
	licenses      *LicenseService
	notifications *NotificationService
	now           func() time.Time
}

type CreateOrderRequest struct {
	PlanID uuid.UUID `json:"plan_id" validate:"required"`
}

type OrderResult struct {
	Order   *models.Order `json:"order"`
	License LicenseView   `json:"license"`
}

func NewPortalService(store repository.Store, licenses *LicenseService, notifications *NotificationService) *PortalService {
	return &PortalService{
		store:         store,
		licenses:      licenses,
		notifications: notifications,
		now:           time.Now,
	}
}

// CreateOrder records a purchase of planID and issues its license. There is no
// payment step; the order completes in the same transaction.
func (s *PortalService) CreateOrder(ctx context.Context, userID, planID uuid.UUID) (*OrderResult, error) {
	if planID == uuid.Nil {
		return nil, newError(KindMalformedInput, "plan_id is required")
	}
	plan, err := s.store.FindPlan(ctx, planID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "plan not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	var (
		order   *models.Order
		license *models.License
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		now := s.now().UTC()
		order = &models.Order{
			UserID:      userID,
			PlanID:      plan.ID,
			AmountUSD:   plan.PriceUSD,
			Status:      models.OrderStatusCompleted,
			CompletedAt: &now,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		var err error
		license, err = s.licenses.createIn(ctx, tx, CreateLicenseParams{
			UserID:    userID,
			ProductID: plan.ProductID,
			PlanID:    plan.ID,
			OrderID:   &order.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"license_id": license.ID,
		"user_id":    userID,
	}).Info("Order completed")

	if s.notifications != nil {
		issued := *license
		s.notifications.Notify(func(ctx context.Context) error {
			user, err := s.store.FindUserByID(ctx, userID)
			if err != nil {
				return err
			}
			return s.notifications.SendLicenseIssued(ctx, user, &issued)
		})
	}

	order.Plan = plan
	return &OrderResult{Order: order, License: newLicenseView(license, s.now())}, nil
}

func (s *PortalService) ListOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders, err := s.store.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *PortalService) DashboardStats(ctx context.Context, userID uuid.UUID) (repository.DashboardStats, error) {
	now := s.now()
	stats, err := s.store.DashboardStats(ctx, userID, now, now.Add(-dashboardWindow))
	if err != nil {
		return stats, fmt.Errorf("failed to load dashboard stats: %w", err)
	}
	return stats, nil
}

// VerificationStatus is the account verification progress shown in the portal.
type VerificationStatus struct {
	UserID                  uuid.UUID  `json:"user_id"`
	Email                   string     `json:"email"`
	EmailVerified           bool       `json:"email_verified"`
	EmailVerifiedAt         *time.Time `json:"email_verified_at"`
	MobileVerified          bool       `json:"mobile_verified"`
	MobileVerifiedAt        *time.Time `json:"mobile_verified_at"`
	VerificationCompletedAt *time.Time `json:"verification_completed_at"`
}

type CompleteEmailVerificationRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

type CompleteMobileVerificationRequest struct {
	SessionID string `json:"session_id"`
}

func newVerificationStatus(user *models.User) *VerificationStatus {
	return &VerificationStatus{
		UserID:                  user.ID,
		Email:                   user.Email,
		EmailVerified:           user.EmailVerified,
		EmailVerifiedAt:         user.EmailVerifiedAt,
		MobileVerified:          user.MobileVerified,
		MobileVerifiedAt:        user.MobileVerifiedAt,
		VerificationCompletedAt: user.VerificationCompletedAt,
	}
}

func (s *PortalService) VerificationStatus(ctx context.Context, userID uuid.UUID) (*VerificationStatus, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newVerificationStatus(user), nil
}

// CompleteEmailVerification marks the caller's email as verified. A non-empty
// email must match the account's address.
func (s *PortalService) CompleteEmailVerification(ctx context.Context, userID uuid.UUID, req CompleteEmailVerificationRequest) (*VerificationStatus, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if email := strings.TrimSpace(req.Email); email != "" && !strings.EqualFold(email, user.Email) {
		return nil, newError(KindMalformedInput, "Email does not match logged-in user email.")
	}

	now := s.now().UTC()
	user.EmailVerified = true
	user.EmailVerifiedAt = &now
	if user.MobileVerified && user.VerificationCompletedAt == nil {
		user.VerificationCompletedAt = &now
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	logrus.WithField("user_id", user.ID).Info("Email verification completed")
	return newVerificationStatus(user), nil
}

// CompleteMobileVerification marks the mobile step done, which completes account
// verification. Email verification must come first.
func (s *PortalService) CompleteMobileVerification(ctx context.Context, userID uuid.UUID, req CompleteMobileVerificationRequest) (*VerificationStatus, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.EmailVerified {
		return nil, newError(KindInvalidState, "Complete email verification first.")
	}

	now := s.now().UTC()
	user.MobileVerified = true
	user.MobileVerifiedAt = &now
	user.VerificationCompletedAt = &now
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"session_id": strings.TrimSpace(req.SessionID),
	}).Info("Mobile verification completed")
	return newVerificationStatus(user), nil
}

func (s *PortalService) findUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "User not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}
