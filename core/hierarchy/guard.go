package hierarchy

import (
	"context"
	"sync"
)

// Ticket identifies one request started through a Guard.
type Ticket struct {
	gen uint64
}

// Guard lets only the latest of overlapping requests commit its result.
// Starting a request cancels the context of the previous one.
type Guard struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// Begin starts a new request, superseding any request still in flight.
func (g *Guard) Begin(ctx context.Context) (Ticket, context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		g.cancel()
	}
	g.gen++
	ctx, g.cancel = context.WithCancel(ctx)
	return Ticket{gen: g.gen}, ctx
}

// Invalidate supersedes any request in flight without starting a new one.
func (g *Guard) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.gen++
}

// Current reports whether t is the latest request.
func (g *Guard) Current(t Ticket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return t.gen == g.gen
}

// Commit runs fn only if t is still the latest request, and reports whether it did.
// fn runs with the guard locked and must not call back into it.
func (g *Guard) Commit(t Ticket, fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t.gen != g.gen {
		return false
	}
	fn()
	g.release()
	return true
}

// Release frees the context of t once its result is in, if t is still the latest request.
func (g *Guard) Release(t Ticket) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t.gen == g.gen {
		g.release()
	}
}

func (g *Guard) release() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}
