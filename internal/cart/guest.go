package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// GuestTTL is how long an idle guest cart and wishlist are kept.
const GuestTTL = 30 * 24 * time.Hour

// GuestState is the cart and wishlist of a shopper who is not logged in.
type GuestState struct {
	Cart     []Line `json:"cart"`
	Wishlist []uint `json:"wishlist"`
}

func (s GuestState) Empty() bool {
	return len(s.Cart) == 0 && len(s.Wishlist) == 0
}

// GuestStore persists guest state by guest id.
type GuestStore interface {
	Load(ctx context.Context, guestID string) (GuestState, error)
	Save(ctx context.Context, guestID string, state GuestState) error
	Delete(ctx context.Context, guestID string) error
}

// RedisGuestStore keeps guest:cart:<id> and guest:wishlist:<id> as JSON.
type RedisGuestStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuestStore(rdb *redis.Client) *RedisGuestStore {
	return &RedisGuestStore{rdb: rdb, ttl: GuestTTL}
}

func cartKey(guestID string) string     { return "guest:cart:" + guestID }
func wishlistKey(guestID string) string { return "guest:wishlist:" + guestID }

func (s *RedisGuestStore) Load(ctx context.Context, guestID string) (GuestState, error) {
	var state GuestState
	if err := s.getJSON(ctx, cartKey(guestID), &state.Cart); err != nil {
		return GuestState{}, err
	}
	if err := s.getJSON(ctx, wishlistKey(guestID), &state.Wishlist); err != nil {
		return GuestState{}, err
	}
	return state, nil
}

func (s *RedisGuestStore) getJSON(ctx context.Context, key string, dest any) error {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

func (s *RedisGuestStore) Save(ctx context.Context, guestID string, state GuestState) error {
	cartJSON, err := json.Marshal(state.Cart)
	if err != nil {
		return err
	}
	wishlistJSON, err := json.Marshal(state.Wishlist)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, cartKey(guestID), cartJSON, s.ttl)
	pipe.Set(ctx, wishlistKey(guestID), wishlistJSON, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisGuestStore) Delete(ctx context.Context, guestID string) error {
	return s.rdb.Del(ctx, cartKey(guestID), wishlistKey(guestID)).Err()
}

// guestSweepInterval bounds how often MemoryGuestStore scans for expired entries.
const guestSweepInterval = time.Hour

type memoryGuest struct {
	state     GuestState
	expiresAt time.Time
}

// MemoryGuestStore is used when Redis is not configured. Entries expire
// GuestTTL after their last save, like the Redis keys.
type MemoryGuestStore struct {
	mu        sync.Mutex
	states    map[string]memoryGuest
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryGuestStore() *MemoryGuestStore {
	return &MemoryGuestStore{states: map[string]memoryGuest{}, ttl: GuestTTL, now: time.Now}
}

func (s *MemoryGuestStore) Load(_ context.Context, guestID string) (GuestState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.states[guestID]
	if !ok {
		return GuestState{}, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.states, guestID)
		return GuestState{}, nil
	}
	return GuestState{
		Cart:     append([]Line(nil), entry.state.Cart...),
		Wishlist: append([]uint(nil), entry.state.Wishlist...),
	}, nil
}

func (s *MemoryGuestStore) Save(_ context.Context, guestID string, state GuestState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)
	s.states[guestID] = memoryGuest{
		state: GuestState{
			Cart:     append([]Line(nil), state.Cart...),
			Wishlist: append([]uint(nil), state.Wishlist...),
		},
		expiresAt: now.Add(s.ttl),
	}
	return nil
}

func (s *MemoryGuestStore) Delete(_ context.Context, guestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, guestID)
	return nil
}

// Len reports the number of stored guests, expired ones included until swept.
func (s *MemoryGuestStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// sweep drops expired guests. Caller holds s.mu.
func (s *MemoryGuestStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < guestSweepInterval {
		return
	}
	s.lastSweep = now
	for id, entry := range s.states {
		if !now.Before(entry.expiresAt) {
			delete(s.states, id)
		}
	}
}
