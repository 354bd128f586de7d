package services

import (
	"context"
	"sync"
	"time"

	"github.com/tbourn/xianyu-agent/internal/clock"
)

// PauseRegistry tracks conversations in which the seller replied by hand.
// Automated replies are suppressed in a paused conversation; delivery
// triggers are not.
type PauseRegistry struct {
	Clock clock.Clock

	mu    sync.Mutex
	until map[string]time.Time
}

// NewPauseRegistry returns an empty registry.
func NewPauseRegistry(clk clock.Clock) *PauseRegistry {
	if clk == nil {
		clk = clock.New()
	}
	return &PauseRegistry{Clock: clk, until: make(map[string]time.Time)}
}

// Pause suppresses automated replies in chatID for minutes. A non-positive
// window is a no-op.
func (p *PauseRegistry) Pause(chatID string, minutes int) {
	if minutes <= 0 || chatID == "" {
		return
	}
	at := p.Clock.Now().Add(time.Duration(minutes) * time.Minute)
	p.mu.Lock()
	p.until[chatID] = at
	p.mu.Unlock()
}

// IsPaused reports whether chatID is inside its pause window.
func (p *PauseRegistry) IsPaused(chatID string) bool {
	_, ok := p.Until(chatID)
	return ok
}

// Until returns the end of the pause window of chatID, if one is active.
func (p *PauseRegistry) Until(chatID string) (time.Time, bool) {
	now := p.Clock.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	at, ok := p.until[chatID]
	if !ok || !now.Before(at) {
		return time.Time{}, false
	}
	return at, true
}

// Len returns the number of recorded pauses, expired ones included.
func (p *PauseRegistry) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.until)
}

// Sweep drops expired entries and returns how many were removed.
func (p *PauseRegistry) Sweep() int {
	now := p.Clock.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for id, at := range p.until {
		if !now.Before(at) {
			delete(p.until, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (p *PauseRegistry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	t := p.Clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C():
			p.Sweep()
		}
	}
}
