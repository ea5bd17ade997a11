// internal/repository/gorm_users.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/utils"
)

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return translateError(s.conn(ctx).Omit("Licenses", "Orders").Create(user).Error)
}

func (s *GormStore) SaveUser(ctx context.Context, user *models.User) error {
	return translateError(s.conn(ctx).Omit("Licenses", "Orders").Save(user).Error)
}

func (s *GormStore) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *GormStore) ListUsers(ctx context.Context, params utils.PaginationParams) ([]models.User, int64, error) {
	query := s.conn(ctx).Model(&models.User{})
	if params.Search != "" {
		like := "%" + params.Search + "%"
		query = query.Where("email ILIKE ? OR name ILIKE ? OR company ILIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	query = utils.ApplySort(query, params, []string{"created_at", "email", "name"})
	if err := utils.ApplyPagination(query, params).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *GormStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return translateError(s.conn(ctx).Omit("User").Create(token).Error)
}

func (s *GormStore) ConsumeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	res := s.conn(ctx).Model(&models.RefreshToken{}).
		Where("token = ? AND is_revoked = ? AND expires_at > ?", tokenHash, false, now).
		Update("is_revoked", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var token models.RefreshToken
	if err := s.conn(ctx).Where("token = ?", tokenHash).First(&token).Error; err != nil {
		return nil, translateError(err)
	}
	return &token, nil
}

func (s *GormStore) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	return s.conn(ctx).Model(&models.RefreshToken{}).
		Where("token = ?", tokenHash).
		Update("is_revoked", true).Error
}

func (s *GormStore) CreateOrder(ctx context.Context, order *models.Order) error {
	return translateError(s.conn(ctx).Omit("Plan").Create(order).Error)
}

func (s *GormStore) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := s.conn(ctx).
		Preload("Plan.Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
