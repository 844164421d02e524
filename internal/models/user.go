// Package models contains data structures for the application's domain models.
package models

import "time"

// User is an account shared by the store and tracker surfaces.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email      string    `gorm:"uniqueIndex;size:254;not null" json:"email"`
	Password   string    `gorm:"column:password_hash;not null" json:"-"`
	Phone      string    `json:"phone"`
	Name       string    `json:"name"`
	AvatarURL  string    `json:"avatarUrl"`
	IsComplete bool      `gorm:"not null" json:"isComplete"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PublicUser is the user view returned alongside auth tokens.
type PublicUser struct {
	ID         uint   `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	AvatarURL  string `json:"avatarUrl"`
	IsComplete bool   `json:"isComplete"`
}

// Public strips timestamps and credentials.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Name:       u.Name,
		Phone:      u.Phone,
		AvatarURL:  u.AvatarURL,
		IsComplete: u.IsComplete,
	}
}
