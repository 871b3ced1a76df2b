package logging

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDetachContextSurvivesParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	detached := DetachContext(parent)

	cancel()

	if parent.Err() == nil {
		t.Fatal("parent should be cancelled")
	}
	if detached.Err() != nil {
		t.Fatalf("detached context cancelled with parent: %v", detached.Err())
	}
}

func TestDetachContextKeepsValues(t *testing.T) {
	type ctxKey string
	parent := context.WithValue(context.Background(), ctxKey("request-id"), "r-42")
	detached := DetachContext(parent)

	if v := detached.Value(ctxKey("request-id")); v != "r-42" {
		t.Errorf("value lost across detach: got %v", v)
	}
}

func TestDetachContextWithTimeoutOwnDeadline(t *testing.T) {
	parent, parentCancel := context.WithCancel(context.Background())
	detached, cancel := DetachContextWithTimeout(parent, 50*time.Millisecond)
	defer cancel()

	parentCancel()
	if detached.Err() != nil {
		t.Fatalf("detached cancelled by parent: %v", detached.Err())
	}

	if _, ok := detached.Deadline(); !ok {
		t.Fatal("detached context has no deadline")
	}

	<-detached.Done()
	if !errors.Is(detached.Err(), context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", detached.Err())
	}
}
