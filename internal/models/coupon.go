package models

import "time"

const (
	CouponPercentage   = "percentage"
	CouponFixed        = "fixed"
	CouponFreeShipping = "free_shipping"
)

type Coupon struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Code      string     `gorm:"size:40;uniqueIndex;not null" json:"code"`
	Type      string     `gorm:"size:20;not null" json:"type"` // percentage, fixed, free_shipping
	Value     float64    `json:"value"`
	MinAmount float64    `json:"min_amount"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsActive  bool       `gorm:"not null" json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
}
