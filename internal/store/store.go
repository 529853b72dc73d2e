package store

import (
	"context"
	"errors"
	"strings"

	"storefront_back_end/internal/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrConflict          = errors.New("record already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
)

const (
	SortRelevance = "relevance"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
	SortRating    = "rating"
)

// SortOptions lists the accepted product sort keys.
var SortOptions = []string{SortRelevance, SortPriceAsc, SortPriceDesc, SortNewest, SortRating}

// ProductQuery filters a product listing. Zero values disable a filter.
type ProductQuery struct {
	// IDs restricts the listing to these products. With SortRelevance the
	// result keeps the order of IDs. A non-nil empty slice matches nothing.
	IDs []uint

	Text            string
	CategorySlug    string
	MinPrice        *float64
	MaxPrice        *float64
	MinRating       float64
	InStock         bool
	IncludeInactive bool

	Sort   string
	Offset int
	Limit  int
}

// Store is the persistence boundary used by every service.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByProvider(ctx context.Context, provider, providerID string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uint) error
	ListUsers(ctx context.Context, offset, limit int) ([]models.User, int64, error)

	GetProfile(ctx context.Context, userID uint) (*models.UserProfile, error)
	SaveProfile(ctx context.Context, profile *models.UserProfile) error

	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error

	ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, int64, error)
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []uint) (map[uint]models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	PriceRange(ctx context.Context) (min, max float64, err error)

	ListReviews(ctx context.Context, productID uint) ([]models.Review, error)
	CreateReview(ctx context.Context, review *models.Review) error

	CartItems(ctx context.Context, userID uint) ([]models.CartItem, error)
	UpsertCartItem(ctx context.Context, userID, productID uint, quantity int) error
	DeleteCartItem(ctx context.Context, userID, productID uint) error
	ClearCart(ctx context.Context, userID uint) error

	WishlistItems(ctx context.Context, userID uint) ([]models.WishlistItem, error)
	AddWishlistItem(ctx context.Context, userID, productID uint) error
	DeleteWishlistItem(ctx context.Context, userID, productID uint) error

	// PlaceOrder persists the order with its items, decrements stock and
	// clears the owner's cart atomically.
	PlaceOrder(ctx context.Context, order *models.Order) error
	ListOrders(ctx context.Context, userID uint, offset, limit int) ([]models.Order, int64, error)
	GetOrderByNumber(ctx context.Context, userID uint, number string) (*models.Order, error)
	SetOrderPaymentIntent(ctx context.Context, orderID uint, intentID string) error

	PaymentMethods(ctx context.Context, userID uint) ([]models.PaymentMethod, error)
	AddPaymentMethod(ctx context.Context, pm *models.PaymentMethod) error
	DeletePaymentMethod(ctx context.Context, userID, id uint) error
	SetDefaultPaymentMethod(ctx context.Context, userID, id uint) error

	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	CreateCoupon(ctx context.Context, coupon *models.Coupon) error
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeCouponCode is the canonical form coupon codes are stored in.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

// orderByIDs sorts products in the order given by ids.
func orderByIDs(products []models.Product, ids []uint) []models.Product {
	pos := make(map[uint]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	out := make([]models.Product, len(products))
	copy(out, products)
	sortStable(out, func(a, b models.Product) bool { return pos[a.ID] < pos[b.ID] })
	return out
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
