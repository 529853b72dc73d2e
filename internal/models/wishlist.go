package models

import "time"

type WishlistItem struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_wishlist_user_product;not null" json:"-"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ProductID uint      `gorm:"uniqueIndex:idx_wishlist_user_product;not null" json:"product_id"`
	Product   Product   `gorm:"constraint:OnDelete:CASCADE" json:"product"`
	CreatedAt time.Time `json:"added_at"`
}
