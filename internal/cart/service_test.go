package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront_back_end/internal/events"
	"storefront_back_end/internal/realtime"
	"storefront_back_end/internal/store"
)

type notifierMock struct {
	mock.Mock
}

func (m *notifierMock) Publish(ctx context.Context, userID uint, event string) error {
	return m.Called(userID, event).Error(0)
}

type syncEventsMock struct {
	mock.Mock
}

func (m *syncEventsMock) CartSynced(ctx context.Context, e events.CartSynced) error {
	return m.Called(e.UserID, e.Source, e.Skipped).Error(0)
}

type fixture struct {
	svc    *Service
	store  store.Store
	guests GuestStore
	user   uint
}

func newFixture(t *testing.T, guests GuestStore, opts ...Option) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, store.SeedDemo(context.Background(), st))
	u, err := st.GetUserByEmail(context.Background(), store.DemoCustomerEmail)
	require.NoError(t, err)
	return &fixture{svc: NewService(st, guests, opts...), store: st, guests: guests, user: u.ID}
}

func (f *fixture) id(t *testing.T, slug string) uint {
	t.Helper()
	p, err := f.store.GetProductBySlug(context.Background(), slug)
	require.NoError(t, err)
	return p.ID
}

func quantities(v *CartView) map[string]int {
	out := map[string]int{}
	for _, l := range v.Items {
		out[l.Product.Slug] = l.Quantity
	}
	return out
}

func TestGuestCartAddAccumulatesAndClamps(t *testing.T) {
	f := newFixture(t, NewMemoryGuestStore())
	ctx := context.Background()
	guest := Owner{GuestID: "g-1"}
	headlamp := f.id(t, "headlamp")
	speakers := f.id(t, "bookshelf-speakers")

	_, err := f.svc.Add(ctx, guest, headlamp, 2)
	require.NoError(t, err)
	view, err := f.svc.Add(ctx, guest, headlamp, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, quantities(view)["headlamp"])

	view, err = f.svc.Add(ctx, guest, headlamp, 500)
	require.NoError(t, err)
	assert.Equal(t, 75, quantities(view)["headlamp"], "clamped to stock")

	view, err = f.svc.Add(ctx, guest, speakers, 20)
	require.NoError(t, err)
	assert.Equal(t, 8, quantities(view)["bookshelf-speakers"])
	assert.Equal(t, 83, view.Count)
	assert.InDelta(t, 75*27.90+8*249.0, view.Subtotal, 0.001)
}

func TestClampNeverExceedsMaxQuantity(t *testing.T) {
	f := newFixture(t, NewMemoryGuestStore())
	p, err := f.store.GetProductBySlug(context.Background(), "usb-c-earbuds")
	require.NoError(t, err)
	assert.Equal(t, MaxQuantity, Clamp(1000, *p))
	assert.Equal(t, 1, Clamp(-3, *p))
}

func TestAddRejectsBadInput(t *testing.T) {
	f := newFixture(t, NewMemoryGuestStore())
	ctx := context.Background()
	owner := Owner{UserID: f.user}

	_, err := f.svc.Add(ctx, owner, f.id(t, "portable-speaker"), 1)
	assert.ErrorIs(t, err, ErrProductUnavailable)
	_, err = f.svc.Add(ctx, owner, 9999, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
	_, err = f.svc.Add(ctx, owner, f.id(t, "headlamp"), -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = f.svc.Add(ctx, Owner{}, f.id(t, "headlamp"), 1)
	assert.ErrorIs(t, err, ErrNoOwner)
}

func TestSetQuantityAndRemove(t *testing.T) {
	for name, owner := range map[string]Owner{"guest": {GuestID: "g-2"}, "user": {}} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, NewMemoryGuestStore())
			if owner.GuestID == "" {
				owner.UserID = f.user
			}
			ctx := context.Background()
			lamp := f.id(t, "desk-lamp")

			_, err := f.svc.SetQuantity(ctx, owner, lamp, 2)
			assert.ErrorIs(t, err, ErrNotInCart)

			_, err = f.svc.Add(ctx, owner, lamp, 1)
			require.NoError(t, err)
			view, err := f.svc.SetQuantity(ctx, owner, lamp, 4)
			require.NoError(t, err)
			assert.Equal(t, 4, quantities(view)["desk-lamp"])

			view, err = f.svc.SetQuantity(ctx, owner, lamp, 0)
			require.NoError(t, err)
			assert.Empty(t, view.Items)

			_, err = f.svc.Remove(ctx, owner, lamp)
			assert.ErrorIs(t, err, ErrNotInCart)
		})
	}
}

func TestUserCartMutationsNotify(t *testing.T) {
	n := new(notifierMock)
	f := newFixture(t, NewMemoryGuestStore(), WithNotifier(n))
	ctx := context.Background()
	n.On("Publish", f.user, realtime.EventCartUpdated).Return(nil).Twice()

	lamp := f.id(t, "desk-lamp")
	_, err := f.svc.Add(ctx, Owner{UserID: f.user}, lamp, 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.Clear(ctx, Owner{UserID: f.user}))

	_, err = f.svc.Add(ctx, Owner{GuestID: "g"}, lamp, 1)
	require.NoError(t, err)

	n.AssertExpectations(t)
}

func TestSyncMergesAndIsIdempotent(t *testing.T) {
	ev := new(syncEventsMock)
	f := newFixture(t, NewMemoryGuestStore(), WithEvents(ev))
	ctx := context.Background()
	user := Owner{UserID: f.user}
	ev.On("CartSynced", int64(f.user), events.SyncSourceClient, int32(3)).Return(nil).Twice()

	_, err := f.svc.Add(ctx, user, f.id(t, "desk-lamp"), 1)
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, user, f.id(t, "french-press"), 2)
	require.NoError(t, err)
	_, err = f.svc.AddToWishlist(ctx, user, f.id(t, "linen-throw"))
	require.NoError(t, err)

	req := SyncRequest{
		Cart: []Line{
			{ProductID: f.id(t, "desk-lamp"), Quantity: 3},
			{ProductID: f.id(t, "headlamp"), Quantity: 1},
			{ProductID: 9999, Quantity: 1},
			{ProductID: f.id(t, "portable-speaker"), Quantity: 1},
		},
		Wishlist: []uint{f.id(t, "headlamp"), 9999, f.id(t, "portable-speaker"), f.id(t, "headlamp")},
	}

	first, err := f.svc.Sync(ctx, f.user, req)
	require.NoError(t, err)
	want := map[string]int{"desk-lamp": 3, "french-press": 2, "headlamp": 1}
	if diff := cmp.Diff(want, quantities(first.Cart)); diff != "" {
		t.Errorf("merged cart (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, first.Wishlist.Count, "union of server and guest wishlists")
	assert.ElementsMatch(t, []Skipped{
		{ProductID: 9999, List: ListCart, Reason: ReasonNotFound},
		{ProductID: f.id(t, "portable-speaker"), List: ListCart, Reason: ReasonUnavailable},
		{ProductID: 9999, List: ListWishlist, Reason: ReasonNotFound},
	}, first.Skipped)

	second, err := f.svc.Sync(ctx, f.user, req)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("replayed sync changed state (-first +second):\n%s", diff)
	}
	ev.AssertExpectations(t)
}

func TestSyncDuplicateLinesLastWins(t *testing.T) {
	f := newFixture(t, NewMemoryGuestStore())
	lamp := f.id(t, "desk-lamp")
	res, err := f.svc.Sync(context.Background(), f.user, SyncRequest{Cart: []Line{
		{ProductID: lamp, Quantity: 5},
		{ProductID: lamp, Quantity: 2},
		{ProductID: f.id(t, "headlamp"), Quantity: 0},
	}})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"desk-lamp": 2}, quantities(res.Cart))
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, ReasonInvalidQuantity, res.Skipped[0].Reason)
}

func TestMergeGuestFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := newFixture(t, NewRedisGuestStore(rdb))
	ctx := context.Background()
	guest := Owner{GuestID: "guest-abc"}

	_, err := f.svc.Add(ctx, guest, f.id(t, "headlamp"), 2)
	require.NoError(t, err)
	_, err = f.svc.AddToWishlist(ctx, guest, f.id(t, "portable-speaker"))
	require.NoError(t, err)
	assert.True(t, mr.Exists("guest:cart:guest-abc"))
	assert.Equal(t, GuestTTL, mr.TTL("guest:cart:guest-abc"))

	res, err := f.svc.MergeGuest(ctx, guest.GuestID, f.user)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, map[string]int{"headlamp": 2}, quantities(res.Cart))
	require.Len(t, res.Wishlist.Items, 1)
	assert.Equal(t, "portable-speaker", res.Wishlist.Items[0].Slug)

	assert.False(t, mr.Exists("guest:cart:guest-abc"))
	assert.False(t, mr.Exists("guest:wishlist:guest-abc"))

	again, err := f.svc.MergeGuest(ctx, guest.GuestID, f.user)
	require.NoError(t, err)
	assert.Nil(t, again)

	view, err := f.svc.Cart(ctx, guest)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestWishlistToggleAndMoveToCart(t *testing.T) {
	f := newFixture(t, NewMemoryGuestStore())
	ctx := context.Background()
	for _, owner := range []Owner{{GuestID: "g-3"}, {UserID: f.user}} {
		lamp := f.id(t, "desk-lamp")
		speaker := f.id(t, "portable-speaker")

		added, view, err := f.svc.Toggle(ctx, owner, lamp)
		require.NoError(t, err)
		assert.True(t, added)
		assert.Equal(t, 1, view.Count)

		added, view, err = f.svc.Toggle(ctx, owner, lamp)
		require.NoError(t, err)
		assert.False(t, added)
		assert.Zero(t, view.Count)

		_, err = f.svc.AddToWishlist(ctx, owner, lamp)
		require.NoError(t, err)
		_, err = f.svc.AddToWishlist(ctx, owner, lamp)
		require.NoError(t, err)
		_, err = f.svc.AddToWishlist(ctx, owner, speaker)
		require.NoError(t, err)

		_, _, err = f.svc.MoveToCart(ctx, owner, speaker)
		assert.ErrorIs(t, err, ErrProductUnavailable)
		wl, err := f.svc.Wishlist(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, 2, wl.Count, "rejected move keeps the wishlist")

		cartView, wl, err := f.svc.MoveToCart(ctx, owner, lamp)
		require.NoError(t, err)
		assert.Equal(t, 1, quantities(cartView)["desk-lamp"])
		assert.Equal(t, 1, wl.Count)

		_, _, err = f.svc.MoveToCart(ctx, owner, lamp)
		assert.ErrorIs(t, err, ErrNotInWishlist)
		_, err = f.svc.RemoveFromWishlist(ctx, owner, lamp)
		assert.ErrorIs(t, err, ErrNotInWishlist)
	}
}

func TestMemoryGuestStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	guests := NewMemoryGuestStore()
	guests.now = func() time.Time { return now }

	require.NoError(t, guests.Save(ctx, "old", GuestState{Cart: []Line{{ProductID: 1, Quantity: 2}}}))
	now = now.Add(GuestTTL - time.Minute)
	require.NoError(t, guests.Save(ctx, "fresh", GuestState{Wishlist: []uint{3}}))

	state, err := guests.Load(ctx, "old")
	require.NoError(t, err)
	assert.Len(t, state.Cart, 1, "still inside the TTL")

	now = now.Add(2 * time.Minute)
	state, err = guests.Load(ctx, "old")
	require.NoError(t, err)
	assert.True(t, state.Empty())

	// Guests that are never loaded again still go away.
	require.NoError(t, guests.Save(ctx, "abandoned", GuestState{Wishlist: []uint{4}}))
	now = now.Add(GuestTTL + time.Hour)
	require.NoError(t, guests.Save(ctx, "next", GuestState{Wishlist: []uint{5}}))
	assert.Equal(t, 1, guests.Len(), "expired guests are swept on save")
}
