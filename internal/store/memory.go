package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront_back_end/internal/models"
)

type userProduct struct {
	userID    uint
	productID uint
}

// MemoryStore is the in-process Store used in demo mode and tests.
type MemoryStore struct {
	mu sync.RWMutex

	nextID uint

	users          map[uint]models.User
	profiles       map[uint]models.UserProfile
	categories     map[uint]models.Category
	products       map[uint]models.Product
	reviews        map[uint]models.Review
	cart           map[userProduct]models.CartItem
	wishlist       map[userProduct]models.WishlistItem
	orders         map[uint]models.Order
	paymentMethods map[uint]models.PaymentMethod
	coupons        map[uint]models.Coupon

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:          map[uint]models.User{},
		profiles:       map[uint]models.UserProfile{},
		categories:     map[uint]models.Category{},
		products:       map[uint]models.Product{},
		reviews:        map[uint]models.Review{},
		cart:           map[userProduct]models.CartItem{},
		wishlist:       map[userProduct]models.WishlistItem{},
		orders:         map[uint]models.Order{},
		paymentMethods: map[uint]models.PaymentMethod{},
		coupons:        map[uint]models.Coupon{},
		now:            time.Now,
	}
}

func (m *MemoryStore) id() uint {
	m.nextID++
	return m.nextID
}

// tick returns a strictly increasing timestamp so ordering by time is stable.
func (m *MemoryStore) tick() time.Time {
	return m.now().Add(time.Duration(m.nextID) * time.Microsecond)
}

// ---------------- users ----------------

func (m *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.Email = NormalizeEmail(user.Email)
	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrConflict
		}
	}
	user.ID = m.id()
	user.CreatedAt = m.tick()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = *user
	return nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = NormalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetUserByProvider(_ context.Context, provider, providerID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return ErrNotFound
	}
	user.UpdatedAt = m.tick()
	m.users[user.ID] = *user
	return nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	delete(m.profiles, id)
	for k := range m.cart {
		if k.userID == id {
			delete(m.cart, k)
		}
	}
	for k := range m.wishlist {
		if k.userID == id {
			delete(m.wishlist, k)
		}
	}
	for k, o := range m.orders {
		if o.UserID == id {
			delete(m.orders, k)
		}
	}
	for k, pm := range m.paymentMethods {
		if pm.UserID == id {
			delete(m.paymentMethods, k)
		}
	}
	for k, r := range m.reviews {
		if r.UserID == id {
			delete(m.reviews, k)
		}
	}
	return nil
}

func (m *MemoryStore) ListUsers(_ context.Context, offset, limit int) ([]models.User, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sortStable(users, func(a, b models.User) bool { return a.ID < b.ID })
	return page(users, offset, normalizeLimit(limit)), int64(len(users)), nil
}

func (m *MemoryStore) GetProfile(_ context.Context, userID uint) (*models.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) SaveProfile(_ context.Context, profile *models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.profiles[profile.UserID]; ok {
		profile.ID = existing.ID
	} else {
		profile.ID = m.id()
	}
	profile.UpdatedAt = m.tick()
	m.profiles[profile.UserID] = *profile
	return nil
}

// ---------------- catalog ----------------

func (m *MemoryStore) ListCategories(_ context.Context) ([]models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sortStable(out, func(a, b models.Category) bool { return a.Name < b.Name })
	return out, nil
}

func (m *MemoryStore) GetCategoryBySlug(_ context.Context, slug string) (*models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateCategory(_ context.Context, category *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.Slug == category.Slug {
			return ErrConflict
		}
	}
	category.ID = m.id()
	m.categories[category.ID] = *category
	return nil
}

// hydrate fills the category and review aggregate. Caller holds the lock.
func (m *MemoryStore) hydrate(p models.Product) models.Product {
	if c, ok := m.categories[p.CategoryID]; ok {
		p.Category = &c
	}
	sum, count := 0, 0
	for _, r := range m.reviews {
		if r.ProductID == p.ID {
			sum += r.Rating
			count++
		}
	}
	p.ReviewCount = count
	p.Rating = 0
	if count > 0 {
		p.Rating = models.RoundRating(float64(sum) / float64(count))
	}
	return p
}

func (m *MemoryStore) matches(p models.Product, q ProductQuery, ids map[uint]bool) bool {
	if ids != nil && !ids[p.ID] {
		return false
	}
	if !q.IncludeInactive && !p.IsActive {
		return false
	}
	if text := strings.ToLower(strings.TrimSpace(q.Text)); text != "" {
		if !strings.Contains(strings.ToLower(p.Name), text) &&
			!strings.Contains(strings.ToLower(p.Description), text) &&
			!strings.Contains(strings.ToLower(p.Tags), text) {
			return false
		}
	}
	if q.CategorySlug != "" && (p.Category == nil || p.Category.Slug != q.CategorySlug) {
		return false
	}
	if q.MinPrice != nil && p.Price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && p.Price > *q.MaxPrice {
		return false
	}
	if q.MinRating > 0 && p.Rating < q.MinRating {
		return false
	}
	if q.InStock && p.Stock <= 0 {
		return false
	}
	return true
}

func (m *MemoryStore) ListProducts(_ context.Context, q ProductQuery) ([]models.Product, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids map[uint]bool
	if q.IDs != nil {
		ids = make(map[uint]bool, len(q.IDs))
		for _, id := range q.IDs {
			ids[id] = true
		}
	}

	var out []models.Product
	for _, p := range m.products {
		p = m.hydrate(p)
		if m.matches(p, q, ids) {
			out = append(out, p)
		}
	}
	sortStable(out, func(a, b models.Product) bool { return a.ID < b.ID })

	text := strings.ToLower(strings.TrimSpace(q.Text))
	switch q.Sort {
	case SortPriceAsc:
		sortStable(out, func(a, b models.Product) bool { return a.Price < b.Price })
	case SortPriceDesc:
		sortStable(out, func(a, b models.Product) bool { return a.Price > b.Price })
	case SortNewest:
		sortStable(out, func(a, b models.Product) bool {
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID > b.ID
			}
			return a.CreatedAt.After(b.CreatedAt)
		})
	case SortRating:
		sortStable(out, func(a, b models.Product) bool {
			if a.Rating == b.Rating {
				return a.ReviewCount > b.ReviewCount
			}
			return a.Rating > b.Rating
		})
	default:
		if q.IDs != nil {
			out = orderByIDs(out, q.IDs)
		} else if text != "" {
			sortStable(out, func(a, b models.Product) bool {
				return strings.Contains(strings.ToLower(a.Name), text) &&
					!strings.Contains(strings.ToLower(b.Name), text)
			})
		}
	}

	return page(out, q.Offset, normalizeLimit(q.Limit)), int64(len(out)), nil
}

func (m *MemoryStore) GetProduct(_ context.Context, id uint) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = m.hydrate(p)
	return &p, nil
}

func (m *MemoryStore) GetProductBySlug(_ context.Context, slug string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.products {
		if p.Slug == slug {
			p = m.hydrate(p)
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetProductsByIDs(_ context.Context, ids []uint) (map[uint]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uint]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateProduct(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.Slug == product.Slug {
			return ErrConflict
		}
	}
	product.ID = m.id()
	product.CreatedAt = m.tick()
	product.UpdatedAt = product.CreatedAt
	stored := *product
	stored.Category = nil
	m.products[product.ID] = stored
	return nil
}

func (m *MemoryStore) UpdateProduct(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[product.ID]; !ok {
		return ErrNotFound
	}
	for _, p := range m.products {
		if p.Slug == product.Slug && p.ID != product.ID {
			return ErrConflict
		}
	}
	product.UpdatedAt = m.tick()
	stored := *product
	stored.Category = nil
	m.products[product.ID] = stored
	return nil
}

func (m *MemoryStore) PriceRange(_ context.Context) (float64, float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var lo, hi float64
	first := true
	for _, p := range m.products {
		if !p.IsActive {
			continue
		}
		if first || p.Price < lo {
			lo = p.Price
		}
		if first || p.Price > hi {
			hi = p.Price
		}
		first = false
	}
	return lo, hi, nil
}

func (m *MemoryStore) ListReviews(_ context.Context, productID uint) ([]models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Review
	for _, r := range m.reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	sortStable(out, func(a, b models.Review) bool { return a.ID > b.ID })
	return out, nil
}

func (m *MemoryStore) CreateReview(_ context.Context, review *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[review.ProductID]; !ok {
		return ErrNotFound
	}
	for _, r := range m.reviews {
		if r.ProductID == review.ProductID && r.UserID == review.UserID {
			return ErrConflict
		}
	}
	review.ID = m.id()
	review.CreatedAt = m.tick()
	m.reviews[review.ID] = *review
	return nil
}

// ---------------- cart & wishlist ----------------

func (m *MemoryStore) CartItems(_ context.Context, userID uint) ([]models.CartItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.CartItem
	for k, item := range m.cart {
		if k.userID != userID {
			continue
		}
		item.Product = m.products[k.productID]
		out = append(out, item)
	}
	sortStable(out, func(a, b models.CartItem) bool { return a.ID < b.ID })
	return out, nil
}

func (m *MemoryStore) UpsertCartItem(_ context.Context, userID, productID uint, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[productID]; !ok {
		return ErrNotFound
	}
	key := userProduct{userID, productID}
	item, ok := m.cart[key]
	if !ok {
		item = models.CartItem{ID: m.id(), UserID: userID, ProductID: productID, CreatedAt: m.tick()}
	}
	item.Quantity = quantity
	item.UpdatedAt = m.tick()
	m.cart[key] = item
	return nil
}

func (m *MemoryStore) DeleteCartItem(_ context.Context, userID, productID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userProduct{userID, productID}
	if _, ok := m.cart[key]; !ok {
		return ErrNotFound
	}
	delete(m.cart, key)
	return nil
}

func (m *MemoryStore) ClearCart(_ context.Context, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCartLocked(userID)
	return nil
}

func (m *MemoryStore) clearCartLocked(userID uint) {
	for k := range m.cart {
		if k.userID == userID {
			delete(m.cart, k)
		}
	}
}

func (m *MemoryStore) WishlistItems(_ context.Context, userID uint) ([]models.WishlistItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.WishlistItem
	for k, item := range m.wishlist {
		if k.userID != userID {
			continue
		}
		item.Product = m.products[k.productID]
		out = append(out, item)
	}
	sortStable(out, func(a, b models.WishlistItem) bool { return a.ID < b.ID })
	return out, nil
}

func (m *MemoryStore) AddWishlistItem(_ context.Context, userID, productID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[productID]; !ok {
		return ErrNotFound
	}
	key := userProduct{userID, productID}
	if _, ok := m.wishlist[key]; ok {
		return nil
	}
	m.wishlist[key] = models.WishlistItem{ID: m.id(), UserID: userID, ProductID: productID, CreatedAt: m.tick()}
	return nil
}

func (m *MemoryStore) DeleteWishlistItem(_ context.Context, userID, productID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userProduct{userID, productID}
	if _, ok := m.wishlist[key]; !ok {
		return ErrNotFound
	}
	delete(m.wishlist, key)
	return nil
}

// ---------------- orders ----------------

func (m *MemoryStore) PlaceOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range order.Items {
		p, ok := m.products[item.ProductID]
		if !ok || !p.IsActive || p.Stock < item.Quantity {
			return fmt.Errorf("%w: %s", ErrInsufficientStock, item.Name)
		}
	}
	for _, item := range order.Items {
		p := m.products[item.ProductID]
		p.Stock -= item.Quantity
		m.products[p.ID] = p
	}

	order.ID = m.id()
	order.CreatedAt = m.tick()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		order.Items[i].ID = m.id()
		order.Items[i].OrderID = order.ID
	}
	stored := *order
	stored.Items = append([]models.OrderItem(nil), order.Items...)
	m.orders[order.ID] = stored
	m.clearCartLocked(order.UserID)
	return nil
}

func (m *MemoryStore) ListOrders(_ context.Context, userID uint, offset, limit int) ([]models.Order, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sortStable(out, func(a, b models.Order) bool { return a.ID > b.ID })
	return page(out, offset, normalizeLimit(limit)), int64(len(out)), nil
}

func (m *MemoryStore) GetOrderByNumber(_ context.Context, userID uint, number string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.UserID == userID && o.Number == number {
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) SetOrderPaymentIntent(_ context.Context, orderID uint, intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.PaymentIntentID = intentID
	m.orders[orderID] = o
	return nil
}

// ---------------- payment methods ----------------

func (m *MemoryStore) PaymentMethods(_ context.Context, userID uint) ([]models.PaymentMethod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.PaymentMethod
	for _, pm := range m.paymentMethods {
		if pm.UserID == userID {
			out = append(out, pm)
		}
	}
	sortStable(out, func(a, b models.PaymentMethod) bool { return a.ID < b.ID })
	sortStable(out, func(a, b models.PaymentMethod) bool { return a.IsDefault && !b.IsDefault })
	return out, nil
}

func (m *MemoryStore) AddPaymentMethod(_ context.Context, pm *models.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm.IsDefault = true
	for _, existing := range m.paymentMethods {
		if existing.UserID == pm.UserID {
			pm.IsDefault = false
			break
		}
	}
	pm.ID = m.id()
	pm.CreatedAt = m.tick()
	m.paymentMethods[pm.ID] = *pm
	return nil
}

func (m *MemoryStore) DeletePaymentMethod(_ context.Context, userID, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.paymentMethods[id]
	if !ok || pm.UserID != userID {
		return ErrNotFound
	}
	delete(m.paymentMethods, id)
	if !pm.IsDefault {
		return nil
	}
	var next *models.PaymentMethod
	for _, other := range m.paymentMethods {
		if other.UserID == userID && (next == nil || other.ID < next.ID) {
			o := other
			next = &o
		}
	}
	if next != nil {
		next.IsDefault = true
		m.paymentMethods[next.ID] = *next
	}
	return nil
}

func (m *MemoryStore) SetDefaultPaymentMethod(_ context.Context, userID, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.paymentMethods[id]
	if !ok || pm.UserID != userID {
		return ErrNotFound
	}
	for k, other := range m.paymentMethods {
		if other.UserID == userID {
			other.IsDefault = k == id
			m.paymentMethods[k] = other
		}
	}
	return nil
}

// ---------------- coupons ----------------

func (m *MemoryStore) GetCouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code = NormalizeCouponCode(code)
	for _, c := range m.coupons {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateCoupon(_ context.Context, coupon *models.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coupon.Code = NormalizeCouponCode(coupon.Code)
	for _, c := range m.coupons {
		if c.Code == coupon.Code {
			return ErrConflict
		}
	}
	coupon.ID = m.id()
	coupon.CreatedAt = m.tick()
	m.coupons[coupon.ID] = *coupon
	return nil
}
