package tray

import "sync"

// renderGate serializes menu re-renders around user interaction. While an
// interaction is in flight the menu must not be rewritten under the
// pointer, so render requests are deferred; however many arrive, finishing
// the interaction releases exactly one.
type renderGate struct {
	mu      sync.Mutex
	busy    bool
	pending bool
}

// Begin marks an interaction as in flight.
func (g *renderGate) Begin() {
	g.mu.Lock()
	g.busy = true
	g.mu.Unlock()
}

// End marks the interaction finished and reports whether one deferred
// render should run now.
func (g *renderGate) End() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.busy = false
	run := g.pending
	g.pending = false
	return run
}

// TryRender reports whether a render may run immediately. When an
// interaction is in flight it records the request instead and returns
// false.
func (g *renderGate) TryRender() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		g.pending = true
		return false
	}
	return true
}
