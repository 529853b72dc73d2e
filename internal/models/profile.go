package models

import "time"

// UserProfile holds the account details shown on the dashboard and used
// as the shipping address snapshot at checkout.
type UserProfile struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	UserID       uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	User         *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Phone        string    `gorm:"size:32" json:"phone"`
	AddressLine1 string    `gorm:"size:255" json:"address_line1"`
	AddressLine2 string    `gorm:"size:255" json:"address_line2"`
	City         string    `gorm:"size:120" json:"city"`
	PostalCode   string    `gorm:"size:20" json:"postal_code"`
	Country      string    `gorm:"size:2" json:"country"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ShippingAddress renders the profile address as a single line.
func (p UserProfile) ShippingAddress() string {
	parts := []string{}
	for _, s := range []string{p.AddressLine1, p.AddressLine2, p.PostalCode + " " + p.City, p.Country} {
		if trimmed := trimSpace(s); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	out := ""
	for i, s := range parts {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
