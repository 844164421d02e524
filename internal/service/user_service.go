package service

import (
	"context"
	"strings"

	"keystone/internal/models"
	"keystone/internal/repository"
)

type UserService struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
}

// UpsertProfileInput replaces every editable profile field; omitted fields are cleared.
type UpsertProfileInput struct {
	UserID     uint
	Name       string
	Username   string
	Phone      string
	AvatarURL  string
	IsComplete bool
}

func NewUserService(userRepo repository.UserRepository, profileRepo repository.ProfileRepository) *UserService {
	return &UserService{userRepo: userRepo, profileRepo: profileRepo}
}

func (s *UserService) Me(ctx context.Context, userID uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

// GetProfile returns nil when the user never saved a profile.
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	return s.profileRepo.GetByUserID(ctx, userID)
}

func (s *UserService) UpsertProfile(ctx context.Context, in UpsertProfileInput) (*models.Profile, error) {
	const maxFieldLen = 120

	username := strings.TrimSpace(in.Username)
	name := strings.TrimSpace(in.Name)
	if len(username) > 64 {
		return nil, models.NewValidationError("Username too long (max 64 characters)")
	}
	if len(name) > maxFieldLen {
		return nil, models.NewValidationError("Name too long (max 120 characters)")
	}

	if username != "" {
		taken, err := s.profileRepo.UsernameTakenByOther(ctx, username, in.UserID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, models.NewConflictError("Username already in use")
		}
	}

	return s.profileRepo.Upsert(ctx, &models.Profile{
		UserID:     in.UserID,
		Name:       name,
		Username:   username,
		Phone:      strings.TrimSpace(in.Phone),
		AvatarURL:  strings.TrimSpace(in.AvatarURL),
		IsComplete: in.IsComplete,
	})
}

// DeleteUser removes the account with everything it owns.
func (s *UserService) DeleteUser(ctx context.Context, userID uint) error {
	return s.userRepo.Delete(ctx, userID)
}
