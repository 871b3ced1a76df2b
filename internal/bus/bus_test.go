package bus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestNew(t *testing.T) {
	b := New()
	defer b.Close()

	if b.historySize != DefaultHistorySize {
		t.Errorf("history size = %d, want %d", b.historySize, DefaultHistorySize)
	}
	if got := b.Subscribers(); got != 0 {
		t.Errorf("fresh bus has %d subscribers", got)
	}
}

func TestSubscribeAndPublish(t *testing.T) {
	b := New()
	defer b.Close()

	received := make(chan Event, 1)
	id := b.Subscribe(EventCacheHit, func(e Event) {
		received <- e
	})
	if id == "" {
		t.Fatal("Subscribe returned empty ID")
	}

	event := NewEvent(EventCacheHit, "marcus-webb")
	event.Key = "abc123"
	if err := b.Publish(event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-received:
		if got.PersonaID != "marcus-webb" {
			t.Errorf("PersonaID = %q", got.PersonaID)
		}
		if got.Key != "abc123" {
			t.Errorf("Key = %q", got.Key)
		}
		if got.ID == "" || got.Timestamp.IsZero() {
			t.Error("NewEvent left ID or Timestamp unset")
		}
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestTypedSubscriptionsDoNotCross(t *testing.T) {
	b := New()
	defer b.Close()

	var hits, misses atomic.Int32
	b.Subscribe(EventCacheHit, func(Event) { hits.Add(1) })
	b.Subscribe(EventCacheMiss, func(Event) { misses.Add(1) })

	b.Publish(NewEvent(EventCacheMiss, "p1"))
	b.Publish(NewEvent(EventCacheMiss, "p1"))
	b.Publish(NewEvent(EventCacheHit, "p1"))

	waitFor(t, func() bool { return misses.Load() == 2 && hits.Load() == 1 })
}

func TestWildcardReceivesAll(t *testing.T) {
	b := New()
	defer b.Close()

	var count atomic.Int32
	b.Subscribe(AllEvents, func(Event) { count.Add(1) })

	b.Publish(NewEvent(EventCacheHit, "p1"))
	b.Publish(NewEvent(EventMoodAppended, "p1"))
	b.Publish(NewEvent(EventDriftDetected, "p2"))

	waitFor(t, func() bool { return count.Load() == 3 })

	if got := b.SubscribersFor(EventCacheHit); got != 0 {
		t.Errorf("wildcard counted as typed: %d", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	var count atomic.Int32
	id := b.Subscribe(EventMoodAppended, func(Event) { count.Add(1) })

	b.Publish(NewEvent(EventMoodAppended, "p1"))
	waitFor(t, func() bool { return count.Load() == 1 })

	if err := b.Unsubscribe(id); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if got := b.Subscribers(); got != 0 {
		t.Errorf("Subscribers after unsubscribe = %d", got)
	}

	b.Publish(NewEvent(EventMoodAppended, "p1"))
	time.Sleep(50 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Errorf("handler ran after unsubscribe: %d calls", got)
	}

	if err := b.Unsubscribe(id); err == nil {
		t.Error("second Unsubscribe should fail")
	}
}

func TestHistory(t *testing.T) {
	b := NewWithHistory(5)
	defer b.Close()

	for i := 0; i < 8; i++ {
		e := NewEvent(EventResponseGenerated, "p1")
		e.Detail = fmt.Sprintf("event-%d", i)
		b.Publish(e)
	}

	history := b.History()
	if len(history) != 5 {
		t.Fatalf("history length = %d, want 5", len(history))
	}
	if history[0].Detail != "event-3" {
		t.Errorf("oldest retained = %q, want event-3", history[0].Detail)
	}
	if history[4].Detail != "event-7" {
		t.Errorf("newest retained = %q, want event-7", history[4].Detail)
	}

	recent := b.Recent(2)
	if len(recent) != 2 || recent[0].Detail != "event-6" || recent[1].Detail != "event-7" {
		t.Errorf("Recent(2) = %+v", recent)
	}

	if got := b.Recent(100); len(got) != 5 {
		t.Errorf("Recent beyond history length = %d entries", len(got))
	}
}

func TestClosedBus(t *testing.T) {
	b := New()
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := b.Publish(NewEvent(EventCacheHit, "p1")); err == nil {
		t.Error("Publish after Close should fail")
	}
	if id := b.Subscribe(EventCacheHit, func(Event) {}); id != "" {
		t.Error("Subscribe after Close should return empty ID")
	}
	if err := b.Close(); err == nil {
		t.Error("second Close should fail")
	}
}

func TestConcurrentPublish(t *testing.T) {
	b := New()
	defer b.Close()

	var count atomic.Int32
	b.Subscribe(EventMoodAppended, func(Event) { count.Add(1) })

	// Stay under the subscriber buffer so nothing can drop.
	const publishers, perPublisher = 4, 25
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				b.Publish(NewEvent(EventMoodAppended, "p1"))
			}
		}()
	}
	wg.Wait()

	waitFor(t, func() bool { return count.Load() == publishers*perPublisher })

	if len(b.History()) != publishers*perPublisher {
		t.Errorf("history length = %d", len(b.History()))
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := New()
	defer b.Close()

	started := make(chan struct{}, 1)
	gate := make(chan struct{})
	b.Subscribe(EventCacheHit, func(Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-gate
	})

	// First event parks the handler, the next fill the buffer, the rest
	// must drop rather than block Publish.
	b.Publish(NewEvent(EventCacheHit, "p1"))
	<-started
	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(NewEvent(EventCacheHit, "p1"))
	}

	if b.Dropped() == 0 {
		t.Error("expected dropped events for a stuck subscriber")
	}

	close(gate)
}
