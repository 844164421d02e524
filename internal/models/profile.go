package models

import "time"

// Profile is the store surface's editable copy of a user's display fields.
// It is written independently of User; the two are not kept in sync.
type Profile struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"uniqueIndex;not null" json:"userId"`
	Name       string    `json:"name"`
	Username   string    `gorm:"index;size:64" json:"username"`
	Phone      string    `json:"phone"`
	AvatarURL  string    `json:"avatarUrl"`
	IsComplete bool      `gorm:"not null" json:"isComplete"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
