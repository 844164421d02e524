package repository

import (
	"context"
	"errors"

	"keystone/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository stores the store surface's per-user profile.
type ProfileRepository interface {
	// GetByUserID returns nil when the user has no profile yet.
	GetByUserID(ctx context.Context, userID uint) (*models.Profile, error)
	UsernameTakenByOther(ctx context.Context, username string, userID uint) (bool, error)
	Upsert(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	SetAvatar(ctx context.Context, userID uint, url string) error
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &profile, nil
}

func (r *profileRepository) UsernameTakenByOther(ctx context.Context, username string, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("username = ? AND user_id <> ?", username, userID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Upsert inserts the profile or overwrites the editable fields of the existing row for
// the same user, then returns the stored row.
func (r *profileRepository) Upsert(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "username", "phone", "avatar_url", "is_complete", "updated_at"}),
	}).Create(profile).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	stored, err := r.GetByUserID(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, models.NewInternalError(errors.New("profile missing after upsert"))
	}
	return stored, nil
}

func (r *profileRepository) SetAvatar(ctx context.Context, userID uint, url string) error {
	err := r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Update("avatar_url", url).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
