package models

import "time"

// Notification is a row in a user's inbox.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Date      time.Time `gorm:"not null;index" json:"date"`
	UserID    uint      `gorm:"not null;index" json:"userId"`
	Read      bool      `gorm:"not null" json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
