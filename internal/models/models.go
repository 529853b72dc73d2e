package models

import "strings"

// All lists every table for AutoMigrate, parents first.
func All() []any {
	return []any{
		&User{}, &UserProfile{}, &Category{}, &Product{}, &Review{},
		&CartItem{}, &WishlistItem{}, &PaymentMethod{},
		&Order{}, &OrderItem{}, &Coupon{},
	}
}

func trimSpace(s string) string {
	return strings.TrimSpace(s)
}
