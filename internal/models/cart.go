package models

import "time"

// CartItem is one game in a user's cart. A game appears at most once per user.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_game" json:"userId"`
	GameID    string    `gorm:"not null;size:128;uniqueIndex:idx_cart_user_game" json:"gameId"`
	Name      string    `json:"name"`
	CoverURL  string    `json:"coverUrl"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
