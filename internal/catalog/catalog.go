package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/search"
	"storefront_back_end/internal/store"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	listCacheTTL    = 60 * time.Second
	listCachePrefix = "catalog:"

	// searchWindow bounds how many relevance ranked ids a text query can return.
	searchWindow = 500
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrAlreadyReviewed = errors.New("product already reviewed")
	ErrInvalidProduct  = errors.New("invalid product")
	ErrSlugTaken       = errors.New("slug already in use")
)

// ImageURLs turns stored image keys into URLs a browser can load.
type ImageURLs interface {
	URL(ctx context.Context, key string) (string, error)
}

type Filter struct {
	Query     string   `form:"q"`
	Category  string   `form:"category"`
	MinPrice  *float64 `form:"min_price"`
	MaxPrice  *float64 `form:"max_price"`
	MinRating float64  `form:"min_rating"`
	InStock   bool     `form:"in_stock"`
	Sort      string   `form:"sort"`
	Page      int      `form:"page"`
	PageSize  int      `form:"page_size"`
}

type ProductPage struct {
	Items      []models.Product `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

type Filters struct {
	Categories []models.Category `json:"categories"`
	PriceMin   float64           `json:"price_min"`
	PriceMax   float64           `json:"price_max"`
	Sorts      []string          `json:"sorts"`
}

type Service struct {
	store  store.Store
	search search.Searcher
	cache  *cache.Cache
	images ImageURLs
}

// NewService wires the catalog. searcher, c and images may be nil.
func NewService(st store.Store, searcher search.Searcher, c *cache.Cache, images ImageURLs) *Service {
	return &Service{store: st, search: searcher, cache: c, images: images}
}

// AverageRating is the mean of ratings rounded to one decimal, 0 when empty.
func AverageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return models.RoundRating(float64(sum) / float64(len(ratings)))
}

// Normalize applies paging defaults and validates the filter.
func (f *Filter) Normalize() error {
	f.Query = strings.TrimSpace(f.Query)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	if f.Sort == "" {
		f.Sort = store.SortRelevance
	}
	valid := false
	for _, s := range store.SortOptions {
		if s == f.Sort {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidFilter, f.Sort)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return fmt.Errorf("%w: min_price is above max_price", ErrInvalidFilter)
	}
	if f.MinRating < 0 || f.MinRating > 5 {
		return fmt.Errorf("%w: min_rating must be between 0 and 5", ErrInvalidFilter)
	}
	return nil
}

func (f Filter) cacheKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "q=%s|c=%s|r=%g|s=%t|o=%s|p=%d|n=%d", f.Query, f.Category, f.MinRating, f.InStock, f.Sort, f.Page, f.PageSize)
	if f.MinPrice != nil {
		fmt.Fprintf(&b, "|min=%g", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		fmt.Fprintf(&b, "|max=%g", *f.MaxPrice)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return listCachePrefix + "products:" + hex.EncodeToString(sum[:12])
}

func (s *Service) ListProducts(ctx context.Context, f Filter) (*ProductPage, error) {
	if err := f.Normalize(); err != nil {
		return nil, err
	}

	key := f.cacheKey()
	var cached ProductPage
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		logrus.WithError(err).Warn("⚠️ catalog cache read failed")
	} else if ok {
		return &cached, nil
	}

	q := store.ProductQuery{
		Text:         f.Query,
		CategorySlug: f.Category,
		MinPrice:     f.MinPrice,
		MaxPrice:     f.MaxPrice,
		MinRating:    f.MinRating,
		InStock:      f.InStock,
		Sort:         f.Sort,
		Offset:       (f.Page - 1) * f.PageSize,
		Limit:        f.PageSize,
	}
	if f.Query != "" && s.search != nil {
		ids, err := s.search.Search(ctx, f.Query, searchWindow)
		if err != nil {
			logrus.WithError(err).Warn("⚠️ search unavailable, filtering in the database")
		} else {
			q.IDs = ids
			q.Text = ""
		}
	}

	products, total, err := s.store.ListProducts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	for i := range products {
		s.Decorate(ctx, &products[i])
	}
	page := &ProductPage{
		Items:      products,
		Total:      total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(f.PageSize))),
	}
	if page.Items == nil {
		page.Items = []models.Product{}
	}

	if err := s.cache.SetJSON(ctx, key, page, listCacheTTL); err != nil {
		logrus.WithError(err).Warn("⚠️ catalog cache write failed")
	}
	return page, nil
}

// GetProduct looks a product up by slug, or by numeric id.
func (s *Service) GetProduct(ctx context.Context, slugOrID string) (*models.Product, error) {
	p, err := s.store.GetProductBySlug(ctx, slugOrID)
	if errors.Is(err, store.ErrNotFound) {
		if id, convErr := strconv.ParseUint(slugOrID, 10, 64); convErr == nil {
			p, err = s.store.GetProduct(ctx, uint(id))
		}
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrProductNotFound
	}
	s.Decorate(ctx, p)
	return p, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) Filters(ctx context.Context) (*Filters, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	lo, hi, err := s.store.PriceRange(ctx)
	if err != nil {
		return nil, err
	}
	return &Filters{Categories: categories, PriceMin: lo, PriceMax: hi, Sorts: store.SortOptions}, nil
}

// Decorate replaces an image object key by a presigned URL.
func (s *Service) Decorate(ctx context.Context, p *models.Product) {
	if s.images == nil || p.ImageURL == "" || strings.HasPrefix(p.ImageURL, "http") {
		return
	}
	u, err := s.images.URL(ctx, p.ImageURL)
	if err != nil {
		logrus.WithError(err).WithField("product_id", p.ID).Warn("⚠️ image URL not signed")
		return
	}
	p.ImageURL = u
}

// InvalidateLists drops every cached product listing.
func (s *Service) InvalidateLists(ctx context.Context) {
	if _, err := s.cache.DeletePattern(ctx, listCachePrefix+"*"); err != nil {
		logrus.WithError(err).Warn("⚠️ catalog cache invalidation failed")
	}
}
