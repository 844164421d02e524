// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"keystone/internal/cache"
	"keystone/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// GetByID may serve from cache; the returned user never carries the password hash.
	GetByID(ctx context.Context, id uint) (*models.User, error)
	// GetByIdentifier matches a username or an email and returns nil when nothing matches.
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	UpdateAvatar(ctx context.Context, id uint, url string) error
	UpdatePassword(ctx context.Context, id uint, hash string) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
}

type userRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB, c *cache.Cache) UserRepository {
	return &userRepository{db: db, cache: c}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User")
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return &user, nil
}

func (r *userRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if models.IsUniqueViolation(err) {
			return models.NewConflictError("Username or email already in use")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) UpdateAvatar(ctx context.Context, id uint, url string) error {
	return r.updateColumn(ctx, id, "avatar_url", url)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return r.updateColumn(ctx, id, "password_hash", hash)
}

func (r *userRepository) updateColumn(ctx context.Context, id uint, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User")
	}
	r.cache.InvalidateUser(ctx, id)
	return nil
}

// Delete removes the user and everything they own. Tasks assigned to them in other
// users' projects are unassigned.
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}

		ownedProjects := tx.Model(&models.Project{}).Select("id").Where("created_by = ?", id)
		steps := []func() error{
			func() error {
				return tx.Model(&models.Task{}).Where("assigned_to = ?", id).Update("assigned_to", nil).Error
			},
			func() error { return tx.Where("project_id IN (?)", ownedProjects).Delete(&models.Task{}).Error },
			func() error { return tx.Where("created_by = ?", id).Delete(&models.Project{}).Error },
			func() error { return tx.Where("user_id = ?", id).Delete(&models.Notification{}).Error },
			func() error { return tx.Where("user_id = ?", id).Delete(&models.CartItem{}).Error },
			func() error { return tx.Where("user_id = ?", id).Delete(&models.Profile{}).Error },
			func() error { return tx.Delete(&user).Error },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("User")
		}
		return models.NewInternalError(err)
	}
	r.cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
