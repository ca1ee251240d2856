package util

import (
	"context"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	// 10 tokens per second, burst of 2
	l := NewLimiter(10, 2)

	if !l.Allow(1) {
		t.Error("expected first token to be allowed")
	}
	if !l.Allow(1) {
		t.Error("expected second token to be allowed (burst)")
	}
	if l.Allow(1) {
		t.Error("expected third token to be rejected (burst exhausted)")
	}

	time.Sleep(150 * time.Millisecond)
	if !l.Allow(1) {
		t.Error("expected token to be refilled after wait")
	}
}

func TestLimiter_Acquire(t *testing.T) {
	l := NewLimiter(100, 1)

	throttled, err := l.Acquire(context.Background())
	if err != nil || throttled {
		t.Fatalf("first acquire should pass immediately, throttled=%v err=%v", throttled, err)
	}

	throttled, err = l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !throttled {
		t.Error("second acquire should report throttling")
	}
}

func TestLimiter_AcquireCanceled(t *testing.T) {
	l := NewLimiter(0.01, 1)
	l.Allow(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	throttled, err := l.Acquire(ctx)
	if !throttled || err == nil {
		t.Fatalf("expected a throttled acquire to fail, throttled=%v err=%v", throttled, err)
	}
}
