package models

import "time"

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
)

type Order struct {
	ID              uint        `gorm:"primaryKey" json:"-"`
	Number          string      `gorm:"size:36;uniqueIndex;not null" json:"number"`
	UserID          uint        `gorm:"index;not null" json:"-"`
	User            *User       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Status          string      `gorm:"size:20;not null" json:"status"`
	Subtotal        float64     `json:"subtotal"`
	Shipping        float64     `json:"shipping"`
	Discount        float64     `json:"discount"`
	Tax             float64     `json:"tax"`
	Total           float64     `json:"total"`
	Currency        string      `gorm:"size:3" json:"currency"`
	ShippingOption  string      `gorm:"size:20" json:"shipping_option"`
	ShippingAddress string      `gorm:"size:512" json:"shipping_address"`
	CouponCode      string      `gorm:"size:40" json:"coupon_code,omitempty"`
	PaymentMethodID *uint       `json:"payment_method_id,omitempty"`
	PaymentIntentID string      `gorm:"size:255" json:"payment_intent_id,omitempty"`
	Items           []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID        uint    `gorm:"primaryKey" json:"-"`
	OrderID   uint    `gorm:"index;not null" json:"-"`
	ProductID uint    `gorm:"index;not null" json:"product_id"`
	Name      string  `gorm:"size:255" json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

func (i OrderItem) LineTotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}
