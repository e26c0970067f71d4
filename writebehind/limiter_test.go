package writebehind

import (
	"context"
	"testing"
	"time"
)

func TestSharedLimiter(t *testing.T) {
	l := NewSharedLimiter(1)

	if !l.TryAcquire() {
		t.Fatal("Expected first acquire to succeed")
	}
	if l.TryAcquire() {
		t.Fatal("Expected second acquire to fail while slot is held")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("Expected Acquire to respect context deadline")
	}

	l.Release()
	if l.InUse() != 0 {
		t.Errorf("Expected no slots in use, got %d", l.InUse())
	}
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Expected acquire after release, got %v", err)
	}
}
