package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultHistorySize is how many recent events stay around for replay
	// (the websocket feed backfills new clients from it).
	DefaultHistorySize = 1000

	// subscriberBuffer is the per-subscriber channel depth. A subscriber
	// further behind than this starts losing events.
	subscriberBuffer = 100
)

// SubscriptionID identifies one subscription.
type SubscriptionID string

type subscription struct {
	id        SubscriptionID
	eventType EventType
	handler   func(Event)
	ch        chan Event
	done      chan struct{}
}

// Bus is a thread-safe in-process pub/sub with wildcard subscriptions and
// a bounded replay history. Handlers run on their own goroutine, one per
// subscription, so a slow handler delays only itself.
type Bus struct {
	mu      sync.RWMutex
	subs    map[SubscriptionID]*subscription
	typed   map[EventType]map[SubscriptionID]*subscription
	allSubs map[SubscriptionID]*subscription

	historyMu   sync.RWMutex
	history     []Event
	historySize int

	subCounter atomic.Uint64
	dropped    atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a bus with the default history size.
func New() *Bus {
	return NewWithHistory(DefaultHistorySize)
}

// NewWithHistory creates a bus retaining up to historySize events.
func NewWithHistory(historySize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		subs:        make(map[SubscriptionID]*subscription),
		typed:       make(map[EventType]map[SubscriptionID]*subscription),
		allSubs:     make(map[SubscriptionID]*subscription),
		history:     make([]Event, 0, historySize),
		historySize: historySize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Subscribe registers a handler for one event type, or for every event
// with AllEvents. The returned ID unsubscribes. A closed bus returns "".
func (b *Bus) Subscribe(eventType EventType, handler func(Event)) SubscriptionID {
	if b.closed.Load() {
		return ""
	}

	id := SubscriptionID(fmt.Sprintf("sub_%d", b.subCounter.Add(1)))
	sub := &subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
		ch:        make(chan Event, subscriberBuffer),
		done:      make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[id] = sub
	if eventType == AllEvents {
		b.allSubs[id] = sub
	} else {
		if b.typed[eventType] == nil {
			b.typed[eventType] = make(map[SubscriptionID]*subscription)
		}
		b.typed[eventType][id] = sub
	}
	b.mu.Unlock()

	b.wg.Add(1)
	go b.run(sub)

	return id
}

func (b *Bus) run(sub *subscription) {
	defer b.wg.Done()
	for {
		select {
		case event := <-sub.ch:
			sub.handler(event)
		case <-sub.done:
			return
		case <-b.ctx.Done():
			return
		}
	}
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(id SubscriptionID) error {
	if b.closed.Load() {
		return fmt.Errorf("bus is closed")
	}

	b.mu.Lock()
	sub, ok := b.subs[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("subscription %s not found", id)
	}
	delete(b.subs, id)
	delete(b.allSubs, id)
	if typed, ok := b.typed[sub.eventType]; ok {
		delete(typed, id)
		if len(typed) == 0 {
			delete(b.typed, sub.eventType)
		}
	}
	b.mu.Unlock()

	close(sub.done)
	return nil
}

// Publish fans an event out to every matching subscriber. It never
// blocks; subscribers with a full channel miss this event.
func (b *Bus) Publish(event Event) error {
	if b.closed.Load() {
		return fmt.Errorf("bus is closed")
	}

	b.addToHistory(event)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.allSubs {
		b.offer(sub, event)
	}
	for _, sub := range b.typed[event.Type] {
		b.offer(sub, event)
	}
	return nil
}

func (b *Bus) offer(sub *subscription, event Event) {
	select {
	case sub.ch <- event:
	default:
		b.dropped.Add(1)
		log.Debug().
			Str("subscription", string(sub.id)).
			Str("event", string(event.Type)).
			Msg("subscriber behind, event dropped")
	}
}

// Dropped reports how many events were lost to full subscriber channels.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus) addToHistory(event Event) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	b.history = append(b.history, event)
	if len(b.history) > b.historySize {
		b.history = b.history[len(b.history)-b.historySize:]
	}
}

// History returns a copy of the retained events, oldest first.
func (b *Bus) History() []Event {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()

	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// Recent returns up to n of the newest retained events, oldest first.
func (b *Bus) Recent(n int) []Event {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()

	if n > len(b.history) {
		n = len(b.history)
	}
	out := make([]Event, n)
	copy(out, b.history[len(b.history)-n:])
	return out
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// SubscribersFor returns the number of subscriptions for one event type.
// Wildcard subscriptions are not counted.
func (b *Bus) SubscribersFor(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.typed[eventType])
}

// Close stops delivery and waits for every handler goroutine to exit.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("bus already closed")
	}

	b.cancel()
	b.wg.Wait()

	b.mu.Lock()
	b.subs = make(map[SubscriptionID]*subscription)
	b.typed = make(map[EventType]map[SubscriptionID]*subscription)
	b.allSubs = make(map[SubscriptionID]*subscription)
	b.mu.Unlock()

	return nil
}
