package models

import "time"

// CartItem is one server side cart line. (UserID, ProductID) is unique.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_cart_user_product;not null" json:"-"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ProductID uint      `gorm:"uniqueIndex:idx_cart_user_product;not null" json:"product_id"`
	Product   Product   `gorm:"constraint:OnDelete:CASCADE" json:"product"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
