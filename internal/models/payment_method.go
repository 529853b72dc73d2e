package models

import "time"

type PaymentMethod struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"-"`
	User       *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Brand      string    `gorm:"size:32;not null" json:"brand"`
	Last4      string    `gorm:"size:4;not null" json:"last4"`
	ExpMonth   int       `gorm:"not null" json:"exp_month"`
	ExpYear    int       `gorm:"not null" json:"exp_year"`
	HolderName string    `gorm:"size:120" json:"holder_name"`
	IsDefault  bool      `gorm:"not null" json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}
