package realtime

import (
	"context"
	"sync"
)

// LocalBroker delivers events inside a single process.
type LocalBroker struct {
	mu   sync.Mutex
	next int
	subs map[uint]map[int]chan string
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: map[uint]map[int]chan string{}}
}

func (b *LocalBroker) Publish(_ context.Context, userID uint, event string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[userID] {
		select {
		case ch <- event:
		default: // slow reader, it will refetch on the next event
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, userID uint) (<-chan string, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan string, 8)
	id := b.next
	b.next++
	if b.subs[userID] == nil {
		b.subs[userID] = map[int]chan string{}
	}
	b.subs[userID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[userID], id)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			close(ch)
		})
	}
	return ch, cancel, nil
}
