package events

import (
	"context"
	"time"
)

type OrderPlacedItem struct {
	ProductID int64   `avro:"product_id"`
	Name      string  `avro:"name"`
	UnitPrice float64 `avro:"unit_price"`
	Quantity  int32   `avro:"quantity"`
}

type OrderPlaced struct {
	OrderNumber string            `avro:"order_number"`
	UserID      int64             `avro:"user_id"`
	Subtotal    float64           `avro:"subtotal"`
	Discount    float64           `avro:"discount"`
	Shipping    float64           `avro:"shipping"`
	Tax         float64           `avro:"tax"`
	Total       float64           `avro:"total"`
	Currency    string            `avro:"currency"`
	CouponCode  string            `avro:"coupon_code"`
	Items       []OrderPlacedItem `avro:"items"`
	PlacedAt    time.Time         `avro:"placed_at"`
}

const (
	SyncSourceClient = "client"
	SyncSourceLogin  = "login"
)

type CartSynced struct {
	UserID        int64     `avro:"user_id"`
	CartLines     int32     `avro:"cart_lines"`
	WishlistItems int32     `avro:"wishlist_items"`
	Skipped       int32     `avro:"skipped"`
	Source        string    `avro:"source"`
	SyncedAt      time.Time `avro:"synced_at"`
}

// Publisher emits domain events. Delivery is best effort.
type Publisher interface {
	OrderPlaced(ctx context.Context, e OrderPlaced) error
	CartSynced(ctx context.Context, e CartSynced) error
	Close()
}

// Noop drops every event.
type Noop struct{}

func (Noop) OrderPlaced(context.Context, OrderPlaced) error { return nil }
func (Noop) CartSynced(context.Context, CartSynced) error   { return nil }
func (Noop) Close()                                         {}
