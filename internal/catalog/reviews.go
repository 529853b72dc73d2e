package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/models"
	"storefront_back_end/internal/store"
)

type ReviewList struct {
	Reviews []models.Review `json:"reviews"`
	Average float64         `json:"average"`
	Count   int             `json:"count"`
}

func (s *Service) ListReviews(ctx context.Context, slugOrID string) (*ReviewList, error) {
	p, err := s.GetProduct(ctx, slugOrID)
	if err != nil {
		return nil, err
	}
	reviews, err := s.store.ListReviews(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	ratings := make([]int, len(reviews))
	for i, r := range reviews {
		ratings[i] = r.Rating
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return &ReviewList{Reviews: reviews, Average: AverageRating(ratings), Count: len(reviews)}, nil
}

// AddReview records one review per user and product.
func (s *Service) AddReview(ctx context.Context, user models.User, slugOrID string, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	p, err := s.GetProduct(ctx, slugOrID)
	if err != nil {
		return nil, err
	}
	r := &models.Review{
		ProductID: p.ID,
		UserID:    user.ID,
		UserName:  user.Name,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	}
	err = s.store.CreateReview(ctx, r)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrAlreadyReviewed
	}
	if err != nil {
		return nil, err
	}
	s.InvalidateLists(ctx)
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "product_id": p.ID, "rating": rating}).Info("⭐ review added")
	return r, nil
}
