package models

import "time"

type Review struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"uniqueIndex:idx_review_product_user;not null" json:"product_id"`
	Product   *Product  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_review_product_user;not null" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserName  string    `gorm:"size:120" json:"user_name"`
	Rating    int       `gorm:"not null" json:"rating"` // 1-5
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type RatingStat struct {
	ProductID uint
	Average   float64
	Count     int
}
