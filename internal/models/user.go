package models

import "time"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"

	ProviderLocal = "local"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Name         string    `gorm:"size:120" json:"name"`
	Role         string    `gorm:"size:20;not null" json:"role"`
	Provider     string    `gorm:"size:20;not null" json:"provider"`
	ProviderID   string    `gorm:"size:255;index" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
