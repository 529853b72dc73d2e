package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/events"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/realtime"
	"storefront_back_end/internal/store"
)

// MaxQuantity caps a single cart line regardless of stock.
const MaxQuantity = 99

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is unavailable")
	ErrInvalidQuantity    = errors.New("quantity must be a positive number")
	ErrNotInCart          = errors.New("product is not in the cart")
	ErrNotInWishlist      = errors.New("product is not in the wishlist")
	ErrNoOwner            = errors.New("no cart owner")
)

// Owner identifies whose cart is addressed: a logged in user or a guest.
type Owner struct {
	UserID  uint
	GuestID string
}

func (o Owner) IsUser() bool { return o.UserID != 0 }

func (o Owner) Valid() bool { return o.UserID != 0 || o.GuestID != "" }

// Key is a stable identifier used for rate limiting and logs.
func (o Owner) Key() string {
	if o.IsUser() {
		return "user:" + strconv.FormatUint(uint64(o.UserID), 10)
	}
	return "guest:" + o.GuestID
}

type Line struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type CartLine struct {
	Product   models.Product `json:"product"`
	Quantity  int            `json:"quantity"`
	LineTotal float64        `json:"line_total"`
	Available bool           `json:"available"`
}

type CartView struct {
	Items    []CartLine `json:"items"`
	Count    int        `json:"count"`
	Subtotal float64    `json:"subtotal"`
}

type WishlistView struct {
	Items []models.Product `json:"items"`
	Count int              `json:"count"`
}

// Notifier tells other connections of a user that their cart changed.
type Notifier interface {
	Publish(ctx context.Context, userID uint, event string) error
}

// SyncPublisher receives a record of every guest to user merge.
type SyncPublisher interface {
	CartSynced(ctx context.Context, e events.CartSynced) error
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, uint, string) error { return nil }

type Service struct {
	store    store.Store
	guests   GuestStore
	notifier Notifier
	events   SyncPublisher
	decorate func(context.Context, *models.Product)
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithEvents(p SyncPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithProductDecorator sets a hook applied to every product in a view,
// typically to turn image keys into URLs.
func WithProductDecorator(fn func(context.Context, *models.Product)) Option {
	return func(s *Service) { s.decorate = fn }
}

func NewService(st store.Store, guests GuestStore, opts ...Option) *Service {
	s := &Service{
		store:    st,
		guests:   guests,
		notifier: nopNotifier{},
		events:   events.Noop{},
		decorate: func(context.Context, *models.Product) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clamp bounds a requested quantity to [1, min(stock, MaxQuantity)].
func Clamp(quantity int, p models.Product) int {
	limit := MaxQuantity
	if p.Stock < limit {
		limit = p.Stock
	}
	if quantity > limit {
		quantity = limit
	}
	if quantity < 1 {
		quantity = 1
	}
	return quantity
}

// cartProduct loads a product that can be put in a cart.
func (s *Service) cartProduct(ctx context.Context, productID uint) (*models.Product, error) {
	p, err := s.wishlistProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Stock <= 0 {
		return nil, ErrProductUnavailable
	}
	return p, nil
}

// wishlistProduct loads a product that can be saved for later. Out of
// stock products are allowed.
func (s *Service) wishlistProduct(ctx context.Context, productID uint) (*models.Product, error) {
	p, err := s.store.GetProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load product %d: %w", productID, err)
	}
	if !p.IsActive {
		return nil, ErrProductUnavailable
	}
	return p, nil
}

func (s *Service) changed(ctx context.Context, owner Owner, event string) {
	if !owner.IsUser() {
		return
	}
	if err := s.notifier.Publish(ctx, owner.UserID, event); err != nil {
		logrus.WithError(err).WithField("user_id", owner.UserID).Warn("⚠️ cart notification failed")
	}
}

// ---------------- cart ----------------

func (s *Service) lines(ctx context.Context, owner Owner) ([]Line, error) {
	if !owner.Valid() {
		return nil, ErrNoOwner
	}
	if owner.IsUser() {
		items, err := s.store.CartItems(ctx, owner.UserID)
		if err != nil {
			return nil, err
		}
		lines := make([]Line, len(items))
		for i, it := range items {
			lines[i] = Line{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		return lines, nil
	}
	state, err := s.guests.Load(ctx, owner.GuestID)
	if err != nil {
		return nil, err
	}
	return state.Cart, nil
}

// Cart returns the owner's cart with product snapshots and totals.
func (s *Service) Cart(ctx context.Context, owner Owner) (*CartView, error) {
	if !owner.Valid() {
		return nil, ErrNoOwner
	}
	if owner.IsUser() {
		items, err := s.store.CartItems(ctx, owner.UserID)
		if err != nil {
			return nil, err
		}
		view := &CartView{Items: []CartLine{}}
		for _, it := range items {
			view.add(ctx, it.Product, it.Quantity, s.decorate)
		}
		return view, nil
	}

	state, err := s.guests.Load(ctx, owner.GuestID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(state.Cart))
	for i, l := range state.Cart {
		ids[i] = l.ProductID
	}
	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	view := &CartView{Items: []CartLine{}}
	for _, l := range state.Cart {
		p, ok := products[l.ProductID]
		if !ok {
			continue
		}
		view.add(ctx, p, l.Quantity, s.decorate)
	}
	return view, nil
}

func (v *CartView) add(ctx context.Context, p models.Product, quantity int, decorate func(context.Context, *models.Product)) {
	decorate(ctx, &p)
	total := roundCents(p.Price * float64(quantity))
	v.Items = append(v.Items, CartLine{
		Product:   p,
		Quantity:  quantity,
		LineTotal: total,
		Available: p.Available() && quantity <= p.Stock,
	})
	v.Count += quantity
	v.Subtotal = roundCents(v.Subtotal + total)
}

func (s *Service) quantityOf(ctx context.Context, owner Owner, productID uint) (int, error) {
	lines, err := s.lines(ctx, owner)
	if err != nil {
		return 0, err
	}
	for _, l := range lines {
		if l.ProductID == productID {
			return l.Quantity, nil
		}
	}
	return 0, nil
}

func (s *Service) setLine(ctx context.Context, owner Owner, productID uint, quantity int) error {
	if owner.IsUser() {
		return s.store.UpsertCartItem(ctx, owner.UserID, productID, quantity)
	}
	state, err := s.guests.Load(ctx, owner.GuestID)
	if err != nil {
		return err
	}
	replaced := false
	for i := range state.Cart {
		if state.Cart[i].ProductID == productID {
			state.Cart[i].Quantity = quantity
			replaced = true
		}
	}
	if !replaced {
		state.Cart = append(state.Cart, Line{ProductID: productID, Quantity: quantity})
	}
	return s.guests.Save(ctx, owner.GuestID, state)
}

func (s *Service) removeLine(ctx context.Context, owner Owner, productID uint) error {
	if owner.IsUser() {
		err := s.store.DeleteCartItem(ctx, owner.UserID, productID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotInCart
		}
		return err
	}
	state, err := s.guests.Load(ctx, owner.GuestID)
	if err != nil {
		return err
	}
	kept := state.Cart[:0]
	for _, l := range state.Cart {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(state.Cart) {
		return ErrNotInCart
	}
	state.Cart = kept
	return s.guests.Save(ctx, owner.GuestID, state)
}

// Add puts quantity more of a product in the cart. A zero quantity means one.
func (s *Service) Add(ctx context.Context, owner Owner, productID uint, quantity int) (*CartView, error) {
	if !owner.Valid() {
		return nil, ErrNoOwner
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity == 0 {
		quantity = 1
	}
	p, err := s.cartProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	current, err := s.quantityOf(ctx, owner, productID)
	if err != nil {
		return nil, err
	}
	if err := s.setLine(ctx, owner, productID, Clamp(current+quantity, *p)); err != nil {
		return nil, err
	}
	s.changed(ctx, owner, realtime.EventCartUpdated)
	return s.Cart(ctx, owner)
}

// SetQuantity replaces the quantity of a cart line. Zero removes the line.
func (s *Service) SetQuantity(ctx context.Context, owner Owner, productID uint, quantity int) (*CartView, error) {
	if !owner.Valid() {
		return nil, ErrNoOwner
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.Remove(ctx, owner, productID)
	}
	current, err := s.quantityOf(ctx, owner, productID)
	if err != nil {
		return nil, err
	}
	if current == 0 {
		return nil, ErrNotInCart
	}
	p, err := s.cartProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.setLine(ctx, owner, productID, Clamp(quantity, *p)); err != nil {
		return nil, err
	}
	s.changed(ctx, owner, realtime.EventCartUpdated)
	return s.Cart(ctx, owner)
}

func (s *Service) Remove(ctx context.Context, owner Owner, productID uint) (*CartView, error) {
	if !owner.Valid() {
		return nil, ErrNoOwner
	}
	if err := s.removeLine(ctx, owner, productID); err != nil {
		return nil, err
	}
	s.changed(ctx, owner, realtime.EventCartUpdated)
	return s.Cart(ctx, owner)
}

func (s *Service) Clear(ctx context.Context, owner Owner) error {
	if !owner.Valid() {
		return ErrNoOwner
	}
	if owner.IsUser() {
		if err := s.store.ClearCart(ctx, owner.UserID); err != nil {
			return err
		}
	} else {
		state, err := s.guests.Load(ctx, owner.GuestID)
		if err != nil {
			return err
		}
		state.Cart = nil
		if err := s.guests.Save(ctx, owner.GuestID, state); err != nil {
			return err
		}
	}
	s.changed(ctx, owner, realtime.EventCartUpdated)
	return nil
}

// Lines exposes the raw lines, used by checkout to price the cart.
func (s *Service) Lines(ctx context.Context, owner Owner) ([]Line, error) {
	return s.lines(ctx, owner)
}

// ---------------- wishlist ----------------

func (s *Service) wishlistIDs(ctx context.Context, owner Owner) ([]uint, error) {
	if owner.IsUser() {
		items, err := s.store.WishlistItems(ctx, owner.UserID)
		if err != nil {
			return nil, err
		}
		ids := make([]uint, len(items))
		for i, it := range items {
			ids[i] = it.ProductID
		}
		return ids, nil
	}
	state, err := s.guests.Load(ctx, owner.GuestID)
	if err != nil {
		return nil, err
	}
	return state.Wishlist, nil
}

func (s *Service) Wishlist(ctx context.Context, owner Owner) (*WishlistView, error) {
	if !owner.Valid() {
		return nil, ErrNoOwner
	}
	view := &WishlistView{Items: []models.Product{}}
	if owner.IsUser() {
		items, err := s.store.WishlistItems(ctx, owner.UserID)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			p := it.Product
			s.decorate(ctx, &p)
			view.Items = append(view.Items, p)
		}
		view.Count = len(view.Items)
		return view, nil
	}

	ids, err := s.wishlistIDs(ctx, owner)
	if err != nil {
		return nil, err
	}
	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if p, ok := products[id]; ok {
			s.decorate(ctx, &p)
			view.Items = append(view.Items, p)
		}
	}
	view.Count = len(view.Items)
	return view, nil
}

func (s *Service) inWishlist(ctx context.Context, owner Owner, productID uint) (bool, error) {
	ids, err := s.wishlistIDs(ctx, owner)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == productID {
			return true, nil
		}
	}
	return false, nil
}

// AddToWishlist is idempotent.
func (s *Service) AddToWishlist(ctx context.Context, owner Owner, productID uint) (*WishlistView, error) {
	if !owner.Valid() {
		return nil, ErrNoOwner
	}
	if _, err := s.wishlistProduct(ctx, productID); err != nil {
		return nil, err
	}
	if owner.IsUser() {
		if err := s.store.AddWishlistItem(ctx, owner.UserID, productID); err != nil {
			return nil, err
		}
	} else {
		state, err := s.guests.Load(ctx, owner.GuestID)
		if err != nil {
			return nil, err
		}
		if !containsID(state.Wishlist, productID) {
			state.Wishlist = append(state.Wishlist, productID)
			if err := s.guests.Save(ctx, owner.GuestID, state); err != nil {
				return nil, err
			}
		}
	}
	s.changed(ctx, owner, realtime.EventWishlistUpdated)
	return s.Wishlist(ctx, owner)
}

func (s *Service) RemoveFromWishlist(ctx context.Context, owner Owner, productID uint) (*WishlistView, error) {
	if !owner.Valid() {
		return nil, ErrNoOwner
	}
	if err := s.removeWishlist(ctx, owner, productID); err != nil {
		return nil, err
	}
	s.changed(ctx, owner, realtime.EventWishlistUpdated)
	return s.Wishlist(ctx, owner)
}

func (s *Service) removeWishlist(ctx context.Context, owner Owner, productID uint) error {
	if owner.IsUser() {
		err := s.store.DeleteWishlistItem(ctx, owner.UserID, productID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotInWishlist
		}
		return err
	}
	state, err := s.guests.Load(ctx, owner.GuestID)
	if err != nil {
		return err
	}
	if !containsID(state.Wishlist, productID) {
		return ErrNotInWishlist
	}
	kept := state.Wishlist[:0]
	for _, id := range state.Wishlist {
		if id != productID {
			kept = append(kept, id)
		}
	}
	state.Wishlist = kept
	return s.guests.Save(ctx, owner.GuestID, state)
}

// Toggle adds the product when absent and removes it otherwise. It reports
// whether the product is in the wishlist afterwards.
func (s *Service) Toggle(ctx context.Context, owner Owner, productID uint) (bool, *WishlistView, error) {
	if !owner.Valid() {
		return false, nil, ErrNoOwner
	}
	present, err := s.inWishlist(ctx, owner, productID)
	if err != nil {
		return false, nil, err
	}
	if present {
		view, err := s.RemoveFromWishlist(ctx, owner, productID)
		return false, view, err
	}
	view, err := s.AddToWishlist(ctx, owner, productID)
	return err == nil, view, err
}

// MoveToCart adds one unit to the cart and drops the product from the
// wishlist. The wishlist is left untouched when the cart rejects it.
func (s *Service) MoveToCart(ctx context.Context, owner Owner, productID uint) (*CartView, *WishlistView, error) {
	if !owner.Valid() {
		return nil, nil, ErrNoOwner
	}
	present, err := s.inWishlist(ctx, owner, productID)
	if err != nil {
		return nil, nil, err
	}
	if !present {
		return nil, nil, ErrNotInWishlist
	}
	cartView, err := s.Add(ctx, owner, productID, 1)
	if err != nil {
		return nil, nil, err
	}
	wishlist, err := s.RemoveFromWishlist(ctx, owner, productID)
	if err != nil {
		return nil, nil, err
	}
	return cartView, wishlist, nil
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
