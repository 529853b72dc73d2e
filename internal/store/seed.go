package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/utils"
)

const (
	DemoAdminEmail    = "admin@storefront.local"
	DemoCustomerEmail = "demo@storefront.local"
	DemoPassword      = "demo-password"
)

type seedProduct struct {
	name, slug, category, description, tags string
	price, compareAt                        float64
	stock                                   int
}

var demoCategories = []models.Category{
	{Name: "Audio", Slug: "audio", Description: "Headphones, speakers and accessories"},
	{Name: "Home", Slug: "home", Description: "Lighting, kitchen and decor"},
	{Name: "Outdoor", Slug: "outdoor", Description: "Gear for trails and camping"},
	{Name: "Books", Slug: "books", Description: "Paperbacks and hardcovers"},
}

var demoProducts = []seedProduct{
	{"Wireless Headphones", "wireless-headphones", "audio", "Over-ear noise cancelling headphones with 30h battery.", "bluetooth,noise cancelling", 129.99, 159.99, 25},
	{"Bookshelf Speakers", "bookshelf-speakers", "audio", "Pair of passive speakers with walnut finish.", "hifi,wood", 249.00, 0, 8},
	{"USB-C Earbuds", "usb-c-earbuds", "audio", "Wired earbuds with inline microphone.", "wired,usb-c", 19.90, 0, 120},
	{"Portable Speaker", "portable-speaker", "audio", "Waterproof bluetooth speaker for the beach.", "bluetooth,waterproof", 59.00, 79.00, 0},
	{"Desk Lamp", "desk-lamp", "home", "Dimmable LED lamp with warm and cold light.", "led,office", 34.50, 0, 40},
	{"French Press", "french-press", "home", "One litre glass coffee press.", "coffee,kitchen", 24.00, 29.00, 60},
	{"Linen Throw", "linen-throw", "home", "Stonewashed linen blanket, 130x170 cm.", "textile,living room", 69.00, 0, 15},
	{"Trail Backpack", "trail-backpack", "outdoor", "28 litre daypack with rain cover.", "hiking,bag", 89.00, 109.00, 30},
	{"Camping Stove", "camping-stove", "outdoor", "Compact gas stove with piezo ignition.", "camping,cooking", 42.00, 0, 18},
	{"Headlamp", "headlamp", "outdoor", "Rechargeable 400 lumen headlamp.", "light,hiking", 27.90, 0, 75},
	{"The Go Programming Language", "the-go-programming-language", "books", "Classic introduction to Go.", "programming,go", 39.99, 0, 12},
	{"Field Guide to Birds", "field-guide-to-birds", "books", "Illustrated guide to european birds.", "nature,birds", 22.50, 0, 9},
}

var demoCoupons = []models.Coupon{
	{Code: "WELCOME10", Type: models.CouponPercentage, Value: 10, IsActive: true},
	{Code: "FIVEOFF", Type: models.CouponFixed, Value: 5, MinAmount: 30, IsActive: true},
	{Code: "FREESHIP", Type: models.CouponFreeShipping, IsActive: true},
}

// SeedDemo fills an empty store with a demo catalog, coupons and two users.
// It does nothing when categories already exist.
func SeedDemo(ctx context.Context, s Store) error {
	existing, err := s.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	if len(existing) > 0 {
		logrus.Info("⚠️  Catalog already seeded, skipping")
		return nil
	}

	categoryIDs := map[string]uint{}
	for _, c := range demoCategories {
		c := c
		if err := s.CreateCategory(ctx, &c); err != nil {
			return fmt.Errorf("create category %s: %w", c.Slug, err)
		}
		categoryIDs[c.Slug] = c.ID
	}

	productIDs := make([]uint, 0, len(demoProducts))
	for _, sp := range demoProducts {
		p := models.Product{
			Name:           sp.name,
			Slug:           sp.slug,
			Description:    sp.description,
			Price:          sp.price,
			CompareAtPrice: sp.compareAt,
			Stock:          sp.stock,
			CategoryID:     categoryIDs[sp.category],
			Tags:           sp.tags,
			IsActive:       true,
		}
		if err := s.CreateProduct(ctx, &p); err != nil {
			return fmt.Errorf("create product %s: %w", sp.slug, err)
		}
		productIDs = append(productIDs, p.ID)
	}

	for _, c := range demoCoupons {
		c := c
		if err := s.CreateCoupon(ctx, &c); err != nil {
			return fmt.Errorf("create coupon %s: %w", c.Code, err)
		}
	}

	hash, err := utils.HashPassword(DemoPassword)
	if err != nil {
		return err
	}
	admin := models.User{Email: DemoAdminEmail, Name: "Store Admin", Role: models.RoleAdmin,
		Provider: models.ProviderLocal, PasswordHash: hash}
	customer := models.User{Email: DemoCustomerEmail, Name: "Demo Shopper", Role: models.RoleCustomer,
		Provider: models.ProviderLocal, PasswordHash: hash}
	for _, u := range []*models.User{&admin, &customer} {
		if err := s.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("create user %s: %w", u.Email, err)
		}
	}

	ratings := []int{5, 4, 4, 3, 5, 5, 4, 4, 5, 3, 5, 4}
	for i, id := range productIDs {
		for j, u := range []models.User{admin, customer} {
			rating := ratings[(i+j)%len(ratings)]
			r := models.Review{ProductID: id, UserID: u.ID, UserName: u.Name, Rating: rating,
				Comment: "Seeded review", CreatedAt: time.Now()}
			if err := s.CreateReview(ctx, &r); err != nil {
				return fmt.Errorf("create review: %w", err)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"categories": len(demoCategories),
		"products":   len(productIDs),
		"coupons":    len(demoCoupons),
	}).Info("✅ Demo catalog seeded")
	return nil
}
