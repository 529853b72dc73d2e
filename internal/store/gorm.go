package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront_back_end/internal/models"
)

// GormStore implements Store on a relational database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying handle for migrations and health checks.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates every table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(models.All()...)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return err
	}
}

// ---------------- users ----------------

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	if _, err := s.GetUserByEmail(ctx, user.Email); err == nil {
		return ErrConflict
	}
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *GormStore) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_id = ?", provider, providerID).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) UpdateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Save(user).Error)
}

// DeleteUser removes the user and everything owned by them.
func (s *GormStore) DeleteUser(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var orderIDs []uint
		if err := tx.Model(&models.Order{}).Where("user_id = ?", id).Pluck("id", &orderIDs).Error; err != nil {
			return err
		}
		if len(orderIDs) > 0 {
			if err := tx.Where("order_id IN ?", orderIDs).Delete(&models.OrderItem{}).Error; err != nil {
				return err
			}
		}
		for _, model := range []any{
			&models.Order{}, &models.CartItem{}, &models.WishlistItem{},
			&models.PaymentMethod{}, &models.Review{}, &models.UserProfile{},
		} {
			if err := tx.Where("user_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *GormStore) ListUsers(ctx context.Context, offset, limit int) ([]models.User, int64, error) {
	var (
		users []models.User
		total int64
	)
	db := s.db.WithContext(ctx).Model(&models.User{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("id ASC").Offset(offset).Limit(normalizeLimit(limit)).Find(&users).Error
	return users, total, err
}

func (s *GormStore) GetProfile(ctx context.Context, userID uint) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

func (s *GormStore) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	var existing models.UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", profile.UserID).First(&existing).Error
	switch {
	case err == nil:
		profile.ID = existing.ID
		return s.db.WithContext(ctx).Omit(clause.Associations).Save(profile).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		profile.ID = 0
		return s.db.WithContext(ctx).Omit(clause.Associations).Create(profile).Error
	default:
		return err
	}
}

// ---------------- catalog ----------------

func (s *GormStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, err
}

func (s *GormStore) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

func (s *GormStore) CreateCategory(ctx context.Context, category *models.Category) error {
	return translate(s.db.WithContext(ctx).Create(category).Error)
}

// withRatings joins the per-product review aggregate as alias r.
func (s *GormStore) withRatings(ctx context.Context) *gorm.DB {
	ratings := s.db.Model(&models.Review{}).
		Select("product_id, AVG(rating) AS avg_rating, COUNT(*) AS review_count").
		Group("product_id")
	return s.db.WithContext(ctx).Model(&models.Product{}).
		Joins("LEFT JOIN (?) AS r ON r.product_id = products.id", ratings)
}

const productColumns = "products.*, COALESCE(r.avg_rating, 0) AS rating, COALESCE(r.review_count, 0) AS review_count"

func (s *GormStore) filtered(ctx context.Context, q ProductQuery) *gorm.DB {
	db := s.withRatings(ctx)
	if q.IDs != nil {
		db = db.Where("products.id IN ?", append([]uint{0}, q.IDs...))
	}
	if !q.IncludeInactive {
		db = db.Where("products.is_active = ?", true)
	}
	if text := strings.ToLower(strings.TrimSpace(q.Text)); text != "" {
		like := "%" + text + "%"
		db = db.Where("LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ? OR LOWER(products.tags) LIKE ?",
			like, like, like)
	}
	if q.CategorySlug != "" {
		db = db.Where("products.category_id IN (?)",
			s.db.Model(&models.Category{}).Select("id").Where("slug = ?", q.CategorySlug))
	}
	if q.MinPrice != nil {
		db = db.Where("products.price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		db = db.Where("products.price <= ?", *q.MaxPrice)
	}
	if q.MinRating > 0 {
		db = db.Where("COALESCE(r.avg_rating, 0) >= ?", q.MinRating)
	}
	if q.InStock {
		db = db.Where("products.stock > 0")
	}
	return db
}

func (s *GormStore) ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, int64, error) {
	var total int64
	if err := s.filtered(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := normalizeLimit(q.Limit)
	db := s.filtered(ctx, q).Select(productColumns).Preload("Category")
	keepIDOrder := q.IDs != nil && (q.Sort == "" || q.Sort == SortRelevance)

	switch q.Sort {
	case SortPriceAsc:
		db = db.Order("products.price ASC").Order("products.id ASC")
	case SortPriceDesc:
		db = db.Order("products.price DESC").Order("products.id ASC")
	case SortNewest:
		db = db.Order("products.created_at DESC").Order("products.id DESC")
	case SortRating:
		db = db.Order("COALESCE(r.avg_rating, 0) DESC").Order("COALESCE(r.review_count, 0) DESC").Order("products.id ASC")
	default:
		if text := strings.ToLower(strings.TrimSpace(q.Text)); text != "" && !keepIDOrder {
			db = db.Order(clause.OrderBy{Expression: clause.Expr{
				SQL:  "CASE WHEN LOWER(products.name) LIKE ? THEN 0 ELSE 1 END",
				Vars: []any{"%" + text + "%"},
			}})
		}
		db = db.Order("products.id ASC")
	}

	var products []models.Product
	if keepIDOrder {
		if err := db.Find(&products).Error; err != nil {
			return nil, 0, err
		}
		products = page(orderByIDs(products, q.IDs), q.Offset, limit)
	} else if err := db.Offset(q.Offset).Limit(limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	for i := range products {
		products[i].Rating = models.RoundRating(products[i].Rating)
	}
	return products, total, nil
}

func (s *GormStore) getProduct(ctx context.Context, where string, arg any) (*models.Product, error) {
	var product models.Product
	err := s.withRatings(ctx).Select(productColumns).Preload("Category").
		Where(where, arg).Take(&product).Error
	if err != nil {
		return nil, translate(err)
	}
	product.Rating = models.RoundRating(product.Rating)
	return &product, nil
}

func (s *GormStore) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	return s.getProduct(ctx, "products.id = ?", id)
}

func (s *GormStore) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return s.getProduct(ctx, "products.slug = ?", slug)
}

func (s *GormStore) GetProductsByIDs(ctx context.Context, ids []uint) (map[uint]models.Product, error) {
	out := make(map[uint]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var products []models.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (s *GormStore) CreateProduct(ctx context.Context, product *models.Product) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(product).Error)
}

func (s *GormStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Save(product).Error)
}

func (s *GormStore) PriceRange(ctx context.Context) (float64, float64, error) {
	var row struct {
		Min float64
		Max float64
	}
	err := s.db.WithContext(ctx).Model(&models.Product{}).
		Select("COALESCE(MIN(price), 0) AS min, COALESCE(MAX(price), 0) AS max").
		Where("is_active = ?", true).
		Scan(&row).Error
	return row.Min, row.Max, err
}

func (s *GormStore) ListReviews(ctx context.Context, productID uint) ([]models.Review, error) {
	var reviews []models.Review
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).
		Order("created_at DESC").Order("id DESC").Find(&reviews).Error
	return reviews, err
}

func (s *GormStore) CreateReview(ctx context.Context, review *models.Review) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("product_id = ? AND user_id = ?", review.ProductID, review.UserID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrConflict
	}
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(review).Error)
}

// ---------------- cart & wishlist ----------------

func (s *GormStore) CartItems(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.WithContext(ctx).Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").Order("id ASC").
		Find(&items).Error
	return items, err
}

// UpsertCartItem sets the quantity of a line, creating it when missing.
func (s *GormStore) UpsertCartItem(ctx context.Context, userID, productID uint, quantity int) error {
	item := models.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}
	return s.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&item).Error
}

func (s *GormStore) DeleteCartItem(ctx context.Context, userID, productID uint) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ClearCart(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}

func (s *GormStore) WishlistItems(ctx context.Context, userID uint) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	err := s.db.WithContext(ctx).Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at ASC").Order("id ASC").
		Find(&items).Error
	return items, err
}

func (s *GormStore) AddWishlistItem(ctx context.Context, userID, productID uint) error {
	item := models.WishlistItem{UserID: userID, ProductID: productID}
	return s.db.WithContext(ctx).Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&item).Error
}

func (s *GormStore) DeleteWishlistItem(ctx context.Context, userID, productID uint) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.WishlistItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------- orders ----------------

func (s *GormStore) PlaceOrder(ctx context.Context, order *models.Order) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range order.Items {
			res := tx.Model(&models.Product{}).
				Where("id = ? AND is_active = ? AND stock >= ?", item.ProductID, true, item.Quantity).
				Update("stock", gorm.Expr("stock - ?", item.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, item.Name)
			}
		}
		if err := tx.Omit("User").Create(order).Error; err != nil {
			return translate(err)
		}
		return tx.Where("user_id = ?", order.UserID).Delete(&models.CartItem{}).Error
	})
}

func (s *GormStore) ListOrders(ctx context.Context, userID uint, offset, limit int) ([]models.Order, int64, error) {
	var (
		orders []models.Order
		total  int64
	)
	db := s.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Preload("Items").
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(normalizeLimit(limit)).
		Find(&orders).Error
	return orders, total, err
}

func (s *GormStore) GetOrderByNumber(ctx context.Context, userID uint, number string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").
		Where("user_id = ? AND number = ?", userID, number).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (s *GormStore) SetOrderPaymentIntent(ctx context.Context, orderID uint, intentID string) error {
	return s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("payment_intent_id", intentID).Error
}

// ---------------- payment methods ----------------

func (s *GormStore) PaymentMethods(ctx context.Context, userID uint) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("is_default DESC").Order("id ASC").
		Find(&methods).Error
	return methods, err
}

// AddPaymentMethod stores pm. The first method of a user becomes the default.
func (s *GormStore) AddPaymentMethod(ctx context.Context, pm *models.PaymentMethod) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.PaymentMethod{}).Where("user_id = ?", pm.UserID).Count(&count).Error; err != nil {
			return err
		}
		pm.IsDefault = count == 0
		return tx.Omit(clause.Associations).Create(pm).Error
	})
}

// DeletePaymentMethod removes a method; when it was the default the oldest
// remaining one takes over.
func (s *GormStore) DeletePaymentMethod(ctx context.Context, userID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pm models.PaymentMethod
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&pm).Error; err != nil {
			return translate(err)
		}
		if err := tx.Delete(&pm).Error; err != nil {
			return err
		}
		if !pm.IsDefault {
			return nil
		}
		var next models.PaymentMethod
		err := tx.Where("user_id = ?", userID).Order("id ASC").First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Model(&next).Update("is_default", true).Error
	})
}

func (s *GormStore) SetDefaultPaymentMethod(ctx context.Context, userID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pm models.PaymentMethod
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&pm).Error; err != nil {
			return translate(err)
		}
		if err := tx.Model(&models.PaymentMethod{}).
			Where("user_id = ? AND id <> ?", userID, id).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&pm).Update("is_default", true).Error
	})
}

// ---------------- coupons ----------------

func (s *GormStore) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.WithContext(ctx).Where("code = ?", NormalizeCouponCode(code)).First(&coupon).Error
	if err != nil {
		return nil, translate(err)
	}
	return &coupon, nil
}

func (s *GormStore) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = NormalizeCouponCode(coupon.Code)
	if _, err := s.GetCouponByCode(ctx, coupon.Code); err == nil {
		return ErrConflict
	}
	return translate(s.db.WithContext(ctx).Create(coupon).Error)
}
