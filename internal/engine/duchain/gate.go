package duchain

import (
	"context"
	"sync"
)

// ReadyGate is a one-shot latch. It starts closed and, once opened, stays
// open.
type ReadyGate struct {
	once  sync.Once
	ready chan struct{}
}

func NewReadyGate() *ReadyGate {
	return &ReadyGate{ready: make(chan struct{})}
}

// Open releases every current and future waiter. Extra calls are no-ops.
func (g *ReadyGate) Open() {
	g.once.Do(func() { close(g.ready) })
}

func (g *ReadyGate) Ready() bool {
	select {
	case <-g.ready:
		return true
	default:
		return false
	}
}

// Wait blocks until the gate opens or ctx is done.
func (g *ReadyGate) Wait(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	default:
	}
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done exposes the latch for select statements.
func (g *ReadyGate) Done() <-chan struct{} {
	return g.ready
}
