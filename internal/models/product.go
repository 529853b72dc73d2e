package models

import (
	"strings"
	"time"
)

type Product struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Slug           string    `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Description    string    `gorm:"type:text" json:"description"`
	Price          float64   `gorm:"not null" json:"price"`
	CompareAtPrice float64   `json:"compare_at_price,omitempty"`
	Stock          int       `gorm:"not null" json:"stock"`
	CategoryID     uint      `gorm:"index;not null" json:"category_id"`
	Category       *Category `gorm:"constraint:OnDelete:RESTRICT" json:"category,omitempty"`
	ImageURL       string    `gorm:"size:512" json:"image_url"`
	Tags           string    `gorm:"size:512" json:"-"`
	IsActive       bool      `gorm:"not null" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Filled from the reviews aggregate on read.
	Rating      float64 `gorm:"->;-:migration" json:"rating"`
	ReviewCount int     `gorm:"->;-:migration" json:"review_count"`
}

// TagList splits the comma separated tags column.
func (p Product) TagList() []string {
	var tags []string
	for _, t := range strings.Split(p.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Available reports whether the product can be put in a cart.
func (p Product) Available() bool {
	return p.IsActive && p.Stock > 0
}
