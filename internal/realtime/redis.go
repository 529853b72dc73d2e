package realtime

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisBroker uses Redis pub/sub on the cart:<userID> channels.
type RedisBroker struct {
	rdb *redis.Client
}

func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

func (b *RedisBroker) Publish(ctx context.Context, userID uint, event string) error {
	return b.rdb.Publish(ctx, channel(userID), event).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, userID uint) (<-chan string, func(), error) {
	ps := b.rdb.Subscribe(ctx, channel(userID))
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, err
	}

	out := make(chan string, 8)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if err := ps.Close(); err != nil {
				logrus.WithError(err).Warn("⚠️ closing cart subscription")
			}
			wg.Wait()
		})
	}
	return out, cancel, nil
}
