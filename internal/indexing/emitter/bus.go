package emitter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/metrics"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 256

type subscriber struct {
	ch    chan domain.Notification
	kinds map[domain.NotificationKind]struct{}
}

func (s *subscriber) wants(kind domain.NotificationKind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[kind]
	return ok
}

// Bus fans notifications out to subscribers. Emit never blocks: a full
// subscriber loses the notification.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	buffer int
	closed bool
	log    *slog.Logger
}

// NewBus creates a bus whose subscriber channels hold buffer notifications.
func NewBus(buffer int, log *slog.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bus{subs: make(map[int]*subscriber), buffer: buffer, log: log}
}

// Subscribe returns a channel receiving the given kinds, or every kind when
// none is given. cancel unsubscribes and closes the channel.
func (b *Bus) Subscribe(kinds ...domain.NotificationKind) (<-chan domain.Notification, func()) {
	sub := &subscriber{
		ch:    make(chan domain.Notification, b.buffer),
		kinds: make(map[domain.NotificationKind]struct{}, len(kinds)),
	}
	for _, k := range kinds {
		sub.kinds[k] = struct{}{}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}
}

func (b *Bus) Emit(ctx context.Context, n domain.Notification) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, sub := range b.subs {
		if !sub.wants(n.Kind) {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			metrics.NotificationsDropped.WithLabelValues(string(n.Kind)).Inc()
			b.log.Warn("Subscriber is full, dropping notification", "kind", n.Kind, "chain", n.ChainID.Name())
		}
	}
	return nil
}

// Close closes every subscriber channel.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
	return nil
}
