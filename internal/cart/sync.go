package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/events"
	"storefront_back_end/internal/realtime"
)

const (
	ListCart     = "cart"
	ListWishlist = "wishlist"

	ReasonNotFound        = "not_found"
	ReasonUnavailable     = "unavailable"
	ReasonInvalidQuantity = "invalid_quantity"
)

// SyncRequest is the guest state a client hands over after logging in.
type SyncRequest struct {
	Cart     []Line `json:"cart"`
	Wishlist []uint `json:"wishlist"`
}

type Skipped struct {
	ProductID uint   `json:"product_id"`
	List      string `json:"list"`
	Reason    string `json:"reason"`
}

// SyncResult is the merged server state the client overwrites its local
// copy with.
type SyncResult struct {
	Cart     *CartView     `json:"cart"`
	Wishlist *WishlistView `json:"wishlist"`
	Skipped  []Skipped     `json:"skipped"`
}

// Sync merges guest cart and wishlist data into the user's server records.
//
// Each guest cart line overwrites the quantity of the matching server line,
// so replaying the same payload leaves the cart unchanged. Server lines that
// are not in the payload are kept. The wishlist is merged as a set union.
func (s *Service) Sync(ctx context.Context, userID uint, req SyncRequest) (*SyncResult, error) {
	return s.sync(ctx, userID, req, events.SyncSourceClient)
}

func (s *Service) sync(ctx context.Context, userID uint, req SyncRequest, source string) (*SyncResult, error) {
	if userID == 0 {
		return nil, ErrNoOwner
	}

	ids := make([]uint, 0, len(req.Cart)+len(req.Wishlist))
	for _, l := range req.Cart {
		ids = append(ids, l.ProductID)
	}
	ids = append(ids, req.Wishlist...)
	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("sync: load products: %w", err)
	}

	skipped := []Skipped{}
	merged := 0
	for _, l := range dedupeLines(req.Cart) {
		p, ok := products[l.ProductID]
		switch {
		case l.Quantity <= 0:
			skipped = append(skipped, Skipped{l.ProductID, ListCart, ReasonInvalidQuantity})
			continue
		case !ok:
			skipped = append(skipped, Skipped{l.ProductID, ListCart, ReasonNotFound})
			continue
		case !p.Available():
			skipped = append(skipped, Skipped{l.ProductID, ListCart, ReasonUnavailable})
			continue
		}
		if err := s.store.UpsertCartItem(ctx, userID, l.ProductID, Clamp(l.Quantity, p)); err != nil {
			return nil, fmt.Errorf("sync: cart line %d: %w", l.ProductID, err)
		}
		merged++
	}

	seen := map[uint]bool{}
	for _, id := range req.Wishlist {
		if seen[id] {
			continue
		}
		seen[id] = true
		p, ok := products[id]
		switch {
		case !ok:
			skipped = append(skipped, Skipped{id, ListWishlist, ReasonNotFound})
			continue
		case !p.IsActive:
			skipped = append(skipped, Skipped{id, ListWishlist, ReasonUnavailable})
			continue
		}
		if err := s.store.AddWishlistItem(ctx, userID, id); err != nil {
			return nil, fmt.Errorf("sync: wishlist item %d: %w", id, err)
		}
	}

	owner := Owner{UserID: userID}
	cartView, err := s.Cart(ctx, owner)
	if err != nil {
		return nil, err
	}
	wishlist, err := s.Wishlist(ctx, owner)
	if err != nil {
		return nil, err
	}

	s.changed(ctx, owner, realtime.EventCartUpdated)
	s.changed(ctx, owner, realtime.EventWishlistUpdated)

	log := logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"source":   source,
		"merged":   merged,
		"skipped":  len(skipped),
		"wishlist": wishlist.Count,
	})
	log.Info("🛒 guest cart synced")

	ev := events.CartSynced{
		UserID:        int64(userID),
		CartLines:     int32(len(cartView.Items)),
		WishlistItems: int32(wishlist.Count),
		Skipped:       int32(len(skipped)),
		Source:        source,
		SyncedAt:      time.Now(),
	}
	if err := s.events.CartSynced(ctx, ev); err != nil {
		log.WithError(err).Warn("⚠️ cart.synced event not published")
	}

	return &SyncResult{Cart: cartView, Wishlist: wishlist, Skipped: skipped}, nil
}

// MergeGuest moves the server-held guest state into the user's records and
// deletes it. It returns nil when the guest had nothing to merge.
func (s *Service) MergeGuest(ctx context.Context, guestID string, userID uint) (*SyncResult, error) {
	if guestID == "" {
		return nil, nil
	}
	state, err := s.guests.Load(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("merge guest: %w", err)
	}
	if state.Empty() {
		return nil, nil
	}
	res, err := s.sync(ctx, userID, SyncRequest{Cart: state.Cart, Wishlist: state.Wishlist}, events.SyncSourceLogin)
	if err != nil {
		return nil, err
	}
	if err := s.guests.Delete(ctx, guestID); err != nil {
		// A leftover guest state merges again to the same result.
		logrus.WithError(err).WithField("user_id", userID).Warn("⚠️ guest state not deleted")
	}
	return res, nil
}

// dedupeLines keeps the last line of each product, in first-seen order.
func dedupeLines(lines []Line) []Line {
	index := map[uint]int{}
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			out[i] = l
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}
