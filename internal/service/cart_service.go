package service

import (
	"context"
	"strings"

	"keystone/internal/models"
	"keystone/internal/repository"
)

type CartService struct {
	cartRepo repository.CartRepository
}

type AddToCartInput struct {
	UserID   uint
	GameID   string
	Name     string
	CoverURL string
	Price    float64
}

func NewCartService(cartRepo repository.CartRepository) *CartService {
	return &CartService{cartRepo: cartRepo}
}

func (s *CartService) List(ctx context.Context, userID uint) ([]models.CartItem, error) {
	return s.cartRepo.ListByUser(ctx, userID)
}

func (s *CartService) Add(ctx context.Context, in AddToCartInput) (*models.CartItem, error) {
	gameID := strings.TrimSpace(in.GameID)
	if gameID == "" {
		return nil, models.NewValidationError("gameId required")
	}
	if in.Price < 0 {
		return nil, models.NewValidationError("price must not be negative")
	}

	item := &models.CartItem{
		UserID:   in.UserID,
		GameID:   gameID,
		Name:     strings.TrimSpace(in.Name),
		CoverURL: strings.TrimSpace(in.CoverURL),
		Price:    in.Price,
	}
	if err := s.cartRepo.Add(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Remove succeeds whether or not the game was in the cart.
func (s *CartService) Remove(ctx context.Context, userID uint, gameID string) error {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return models.NewValidationError("gameId required")
	}
	_, err := s.cartRepo.Remove(ctx, userID, gameID)
	return err
}
