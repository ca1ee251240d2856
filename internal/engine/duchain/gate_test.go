package duchain

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestReadyGate(t *testing.T) {
	g := NewReadyGate()
	if g.Ready() {
		t.Fatal("new gate should be closed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Wait(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Wait(context.Background()); err != nil {
				t.Errorf("wait: %v", err)
			}
		}()
	}
	time.Sleep(5 * time.Millisecond)
	g.Open()
	g.Open()
	wg.Wait()

	if !g.Ready() {
		t.Fatal("gate should be open")
	}
	select {
	case <-g.Done():
	default:
		t.Fatal("done channel should be closed")
	}
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("open gate should not report the cancelled context: %v", err)
	}
}
