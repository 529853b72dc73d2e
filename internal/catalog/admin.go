package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/store"
)

// ProductInput carries admin writes. Nil fields are left unchanged on update.
type ProductInput struct {
	Name           *string  `json:"name"`
	Slug           *string  `json:"slug"`
	Description    *string  `json:"description"`
	Price          *float64 `json:"price"`
	CompareAtPrice *float64 `json:"compare_at_price"`
	Stock          *int     `json:"stock"`
	CategoryID     *uint    `json:"category_id"`
	Tags           []string `json:"tags"`
	IsActive       *bool    `json:"is_active"`
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func (in ProductInput) apply(p *models.Product) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Slug != nil {
		p.Slug = Slugify(*in.Slug)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.CompareAtPrice != nil {
		p.CompareAtPrice = *in.CompareAtPrice
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.CategoryID != nil {
		p.CategoryID = *in.CategoryID
	}
	if in.Tags != nil {
		var tags []string
		for _, t := range in.Tags {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		p.Tags = strings.Join(tags, ",")
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}

func (s *Service) validate(ctx context.Context, p *models.Product) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case p.Slug == "":
		return fmt.Errorf("%w: slug is required", ErrInvalidProduct)
	case p.Price <= 0:
		return fmt.Errorf("%w: price must be positive", ErrInvalidProduct)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidProduct)
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, c := range categories {
		if c.ID == p.CategoryID {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown category", ErrInvalidProduct)
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	p := &models.Product{IsActive: true}
	in.apply(p)
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	if err := s.validate(ctx, p); err != nil {
		return nil, err
	}
	err := s.store.CreateProduct(ctx, p)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrSlugTaken
	}
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, p)
	return s.reload(ctx, p.ID)
}

func (s *Service) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*models.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	in.apply(p)
	if err := s.validate(ctx, p); err != nil {
		return nil, err
	}
	p.Category = nil
	err = s.store.UpdateProduct(ctx, p)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrSlugTaken
	}
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, p)
	return s.reload(ctx, p.ID)
}

// ProductByID loads a product for admin use, inactive ones included.
func (s *Service) ProductByID(ctx context.Context, id uint) (*models.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	return p, err
}

// SetImage stores a new image object key on the product.
func (s *Service) SetImage(ctx context.Context, id uint, key string) (*models.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ImageURL = key
	p.Category = nil
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, p)
	return s.reload(ctx, p.ID)
}

// Reindex pushes every product to the search index and returns the count.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.search == nil {
		return 0, nil
	}
	var all []models.Product
	for offset := 0; ; offset += MaxPageSize {
		batch, _, err := s.store.ListProducts(ctx, store.ProductQuery{
			IncludeInactive: true, Sort: store.SortRelevance, Offset: offset, Limit: MaxPageSize,
		})
		if err != nil {
			return 0, err
		}
		all = append(all, batch...)
		if len(batch) < MaxPageSize {
			break
		}
	}
	if err := s.search.Reindex(ctx, all); err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *Service) afterWrite(ctx context.Context, p *models.Product) {
	s.InvalidateLists(ctx)
	if s.search != nil {
		if err := s.search.Index(ctx, *p); err != nil {
			logrus.WithError(err).WithField("product_id", p.ID).Warn("⚠️ product not indexed")
		}
	}
}

func (s *Service) reload(ctx context.Context, id uint) (*models.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Decorate(ctx, p)
	return p, nil
}
