package repository

import (
	"context"

	"keystone/internal/models"

	"gorm.io/gorm"
)

// CartRepository stores cart items. The (user_id, game_id) unique index is the
// duplicate check, so Add is a single insert.
type CartRepository interface {
	ListByUser(ctx context.Context, userID uint) ([]models.CartItem, error)
	Add(ctx context.Context, item *models.CartItem) error
	// Remove reports whether a row was deleted.
	Remove(ctx context.Context, userID uint, gameID string) (bool, error)
	Clear(ctx context.Context, userID uint) error
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) ListByUser(ctx context.Context, userID uint) ([]models.CartItem, error) {
	items := []models.CartItem{}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

func (r *cartRepository) Add(ctx context.Context, item *models.CartItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		if models.IsUniqueViolation(err) {
			return models.NewConflictError("Game already in cart")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *cartRepository) Remove(ctx context.Context, userID uint, gameID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND game_id = ?", userID, gameID).Delete(&models.CartItem{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *cartRepository) Clear(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
