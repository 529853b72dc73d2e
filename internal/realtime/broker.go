package realtime

import (
	"context"
	"strconv"
)

const (
	EventCartUpdated     = "cart_updated"
	EventWishlistUpdated = "wishlist_updated"
)

// Broker fans out per-user notifications to every open connection of that
// user, across server instances when backed by Redis.
type Broker interface {
	Publish(ctx context.Context, userID uint, event string) error
	// Subscribe returns a channel of events and a cancel func that must be
	// called to release the subscription. The channel is closed on cancel.
	Subscribe(ctx context.Context, userID uint) (<-chan string, func(), error)
}

func channel(userID uint) string {
	return "cart:" + strconv.FormatUint(uint64(userID), 10)
}
