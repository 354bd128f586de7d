package services

import (
	"sync"
	"time"

	"github.com/tbourn/xianyu-agent/internal/clock"
)

// OrderGate serializes delivery per order id and keeps an order closed for
// a while after a successful delivery.
//
// Two conditions close the gate: the hold flag, set on success and cleared
// by a release timer after ReleaseDelay, and a wall-clock cooldown counted
// from the last delivery. Both are checked before and after taking the
// order's mutex.
type OrderGate struct {
	Clock        clock.Clock
	ReleaseDelay time.Duration
	Cooldown     time.Duration

	mu     sync.Mutex
	orders map[string]*orderEntry
	closed bool
}

type orderEntry struct {
	mu       sync.Mutex // delivery
	detailMu sync.Mutex // order-detail fetch, independent of the hold

	// guarded by OrderGate.mu
	heldUntil    time.Time
	lastDelivery time.Time
	release      clock.Timer
	gen          int
	touched      time.Time
}

// NewOrderGate returns a gate with the given hold and cooldown windows.
func NewOrderGate(clk clock.Clock, releaseDelay, cooldown time.Duration) *OrderGate {
	if clk == nil {
		clk = clock.New()
	}
	return &OrderGate{
		Clock:        clk,
		ReleaseDelay: releaseDelay,
		Cooldown:     cooldown,
		orders:       make(map[string]*orderEntry),
	}
}

func (g *OrderGate) entry(orderID string) *orderEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orders == nil {
		g.orders = make(map[string]*orderEntry)
	}
	e, ok := g.orders[orderID]
	if !ok {
		e = &orderEntry{}
		g.orders[orderID] = e
	}
	e.touched = g.Clock.Now()
	return e
}

// closedLocked reports whether e is held or cooling down. g.mu must be held.
func (g *OrderGate) closedLocked(e *orderEntry, now time.Time) bool {
	if now.Before(e.heldUntil) {
		return true
	}
	return !e.lastDelivery.IsZero() && g.Cooldown > 0 && now.Sub(e.lastDelivery) < g.Cooldown
}

func (g *OrderGate) isClosed(e *orderEntry) bool {
	now := g.Clock.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closedLocked(e, now)
}

// Acquire takes the delivery lock of orderID. It returns ErrHeld without
// blocking on the lock when the order is already closed, and re-checks after
// the lock is taken. The returned func releases the lock.
func (g *OrderGate) Acquire(orderID string) (func(), error) {
	e := g.entry(orderID)
	if g.isClosed(e) {
		return nil, ErrHeld
	}
	e.mu.Lock()
	if g.isClosed(e) {
		e.mu.Unlock()
		return nil, ErrHeld
	}
	return e.mu.Unlock, nil
}

// IsHeld reports whether orderID is closed by its hold flag or cooldown.
func (g *OrderGate) IsHeld(orderID string) bool {
	g.mu.Lock()
	e, ok := g.orders[orderID]
	g.mu.Unlock()
	return ok && g.isClosed(e)
}

// MarkDelivered sets the hold flag of orderID, starts its cooldown and
// schedules the delayed release.
func (g *OrderGate) MarkDelivered(orderID string) {
	e := g.entry(orderID)
	now := g.Clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()
	e.lastDelivery = now
	if g.ReleaseDelay <= 0 {
		return
	}
	e.heldUntil = now.Add(g.ReleaseDelay)
	if g.closed {
		return
	}
	if e.release != nil {
		e.release.Stop()
	}
	e.gen++
	gen := e.gen
	e.release = g.Clock.AfterFunc(g.ReleaseDelay, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if e.gen != gen {
			return
		}
		e.heldUntil = time.Time{}
		e.release = nil
	})
}

// LockDetail takes the order-detail lock of orderID. It is independent of
// the delivery lock and of the hold flag.
func (g *OrderGate) LockDetail(orderID string) func() {
	e := g.entry(orderID)
	e.detailMu.Lock()
	return e.detailMu.Unlock
}

// GC drops entries untouched for longer than maxAge that are neither held
// nor locked. It returns the number of entries removed.
func (g *OrderGate) GC(maxAge time.Duration) int {
	now := g.Clock.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for id, e := range g.orders {
		if now.Sub(e.touched) <= maxAge || g.closedLocked(e, now) {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		if !e.detailMu.TryLock() {
			e.mu.Unlock()
			continue
		}
		if e.release != nil {
			e.release.Stop()
		}
		delete(g.orders, id)
		e.detailMu.Unlock()
		e.mu.Unlock()
		n++
	}
	return n
}

// Len returns the number of tracked orders.
func (g *OrderGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.orders)
}

// Close cancels every pending release. Holds stay in place and no new
// releases are scheduled.
func (g *OrderGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	for _, e := range g.orders {
		if e.release != nil {
			e.release.Stop()
			e.release = nil
		}
	}
}
