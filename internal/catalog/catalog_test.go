package catalog

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/store"
)

type searcherMock struct {
	mock.Mock
}

func (m *searcherMock) Search(ctx context.Context, text string, limit int) ([]uint, error) {
	args := m.Called(text, limit)
	ids, _ := args.Get(0).([]uint)
	return ids, args.Error(1)
}

func (m *searcherMock) Index(ctx context.Context, p models.Product) error {
	return m.Called(p.Slug).Error(0)
}

func (m *searcherMock) Reindex(ctx context.Context, products []models.Product) error {
	return m.Called(len(products)).Error(0)
}

type fakeImages struct{}

func (fakeImages) URL(_ context.Context, key string) (string, error) {
	return "https://cdn.test/" + key + "?signed", nil
}

func seededStore(t *testing.T) store.Store {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, store.SeedDemo(context.Background(), st))
	return st
}

func TestAverageRating(t *testing.T) {
	cases := []struct {
		ratings []int
		want    float64
	}{
		{nil, 0},
		{[]int{5}, 5},
		{[]int{4, 5}, 4.5},
		{[]int{5, 4, 4}, 4.3},
		{[]int{1, 2, 2}, 1.7},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, AverageRating(c.ratings), 1e-9, "%v", c.ratings)
	}
}

func TestFilterNormalize(t *testing.T) {
	f := Filter{PageSize: 500}
	require.NoError(t, f.Normalize())
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, MaxPageSize, f.PageSize)
	assert.Equal(t, store.SortRelevance, f.Sort)

	f = Filter{}
	require.NoError(t, f.Normalize())
	assert.Equal(t, DefaultPageSize, f.PageSize)

	bad := Filter{Sort: "cheapest"}
	assert.ErrorIs(t, bad.Normalize(), ErrInvalidFilter)

	lo, hi := 50.0, 10.0
	bad = Filter{MinPrice: &lo, MaxPrice: &hi}
	assert.ErrorIs(t, bad.Normalize(), ErrInvalidFilter)
}

func TestListProductsPaging(t *testing.T) {
	svc := NewService(seededStore(t), nil, nil, nil)
	page, err := svc.ListProducts(context.Background(), Filter{PageSize: 5, Page: 3, Sort: store.SortPriceAsc})
	require.NoError(t, err)
	assert.EqualValues(t, 12, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Items, 2)
}

func TestListProductsUsesSearchOrder(t *testing.T) {
	st := seededStore(t)
	lamp, _ := st.GetProductBySlug(context.Background(), "desk-lamp")
	headlamp, _ := st.GetProductBySlug(context.Background(), "headlamp")

	s := new(searcherMock)
	s.On("Search", "lamp", searchWindow).Return([]uint{headlamp.ID, lamp.ID}, nil)
	svc := NewService(st, s, nil, nil)

	page, err := svc.ListProducts(context.Background(), Filter{Query: "lamp"})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "headlamp", page.Items[0].Slug)
	assert.Equal(t, "desk-lamp", page.Items[1].Slug)
	s.AssertExpectations(t)
}

func TestListProductsFallsBackWhenSearchFails(t *testing.T) {
	s := new(searcherMock)
	s.On("Search", "bluetooth", searchWindow).Return(nil, errors.New("connection refused"))
	svc := NewService(seededStore(t), s, nil, nil)

	page, err := svc.ListProducts(context.Background(), Filter{Query: "bluetooth"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
}

func TestListProductsCachedUntilInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	st := seededStore(t)
	svc := NewService(st, nil, cache.New(rdb), nil)
	ctx := context.Background()

	first, err := svc.ListProducts(ctx, Filter{Category: "books"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, first.Total)
	assert.Len(t, mr.Keys(), 1)

	p := &models.Product{Name: "Atlas", Slug: "atlas", Price: 15, CategoryID: first.Items[0].CategoryID, Stock: 3, IsActive: true}
	require.NoError(t, st.CreateProduct(ctx, p))

	cached, err := svc.ListProducts(ctx, Filter{Category: "books"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, cached.Total, "served from cache")

	svc.InvalidateLists(ctx)
	assert.Empty(t, mr.Keys())
	fresh, err := svc.ListProducts(ctx, Filter{Category: "books"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, fresh.Total)
}

func TestGetProductBySlugOrID(t *testing.T) {
	st := seededStore(t)
	svc := NewService(st, nil, nil, fakeImages{})
	ctx := context.Background()

	p, err := svc.GetProduct(ctx, "desk-lamp")
	require.NoError(t, err)
	again, err := svc.GetProduct(ctx, strconv.FormatUint(uint64(p.ID), 10))
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)

	_, err = svc.GetProduct(ctx, "nope")
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.SetImage(ctx, p.ID, "products/1/lamp.png")
	require.NoError(t, err)
	decorated, err := svc.GetProduct(ctx, "desk-lamp")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/products/1/lamp.png?signed", decorated.ImageURL)
}

func TestReviews(t *testing.T) {
	st := seededStore(t)
	svc := NewService(st, nil, nil, nil)
	ctx := context.Background()
	shopper := models.User{Name: "New Shopper", Email: "new@example.com", Role: models.RoleCustomer, Provider: models.ProviderLocal}
	require.NoError(t, st.CreateUser(ctx, &shopper))

	_, err := svc.AddReview(ctx, shopper, "headlamp", 6, "")
	assert.ErrorIs(t, err, ErrInvalidRating)

	r, err := svc.AddReview(ctx, shopper, "headlamp", 2, "  too dim ")
	require.NoError(t, err)
	assert.Equal(t, "too dim", r.Comment)

	_, err = svc.AddReview(ctx, shopper, "headlamp", 3, "")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)

	list, err := svc.ListReviews(ctx, "headlamp")
	require.NoError(t, err)
	assert.Equal(t, 3, list.Count)
	// seeded 3 and 5, plus 2
	assert.InDelta(t, 3.3, list.Average, 1e-9)
}

func TestAdminProductWrites(t *testing.T) {
	st := seededStore(t)
	s := new(searcherMock)
	s.On("Index", "camping-mug").Return(nil).Twice()
	svc := NewService(st, s, nil, nil)
	ctx := context.Background()

	outdoor, err := st.GetCategoryBySlug(ctx, "outdoor")
	require.NoError(t, err)
	name, price, stock := "Camping Mug", 9.5, 10
	p, err := svc.CreateProduct(ctx, ProductInput{Name: &name, Price: &price, Stock: &stock, CategoryID: &outdoor.ID, Tags: []string{" enamel ", ""}})
	require.NoError(t, err)
	assert.Equal(t, "camping-mug", p.Slug)
	assert.Equal(t, "enamel", p.Tags)

	_, err = svc.CreateProduct(ctx, ProductInput{Name: &name, Price: &price, Stock: &stock, CategoryID: &outdoor.ID})
	assert.ErrorIs(t, err, ErrSlugTaken)

	negative := -1
	_, err = svc.UpdateProduct(ctx, p.ID, ProductInput{Stock: &negative})
	assert.ErrorIs(t, err, ErrInvalidProduct)

	inactive := false
	updated, err := svc.UpdateProduct(ctx, p.ID, ProductInput{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, err = svc.GetProduct(ctx, "camping-mug")
	assert.ErrorIs(t, err, ErrProductNotFound, "inactive products are hidden")
	s.AssertExpectations(t)
}

func TestReindex(t *testing.T) {
	s := new(searcherMock)
	s.On("Reindex", 12).Return(nil)
	n, err := NewService(seededStore(t), s, nil, nil).Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}
