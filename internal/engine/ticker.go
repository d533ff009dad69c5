// Package engine - ticker.go
// ARCHITECTURAL RULE: The Engine does NOT own a timer.
// The Ticker is a handle held by the Session, which re-arms it whenever a tick reports a new interval.
package engine

import (
	"time"
)

// Ticker is a cancelable fixed-period timer handle.
// Reset always stops the previous handle first, so two timers can never drive the same game.
type Ticker struct {
	ticker *time.Ticker
	period time.Duration
}

// NewTicker creates a stopped ticker.
func NewTicker() *Ticker {
	return &Ticker{}
}

// Reset stops any running timer and starts a new one at period.
func (t *Ticker) Reset(period time.Duration) {
	t.Stop()
	if period <= 0 {
		return
	}
	t.ticker = time.NewTicker(period)
	t.period = period
}

// Stop cancels the running timer. Safe to call repeatedly.
func (t *Ticker) Stop() {
	if t.ticker != nil {
		t.ticker.Stop()
		t.ticker = nil
	}
}

// C returns the tick channel, or nil while stopped so a select on it blocks forever.
func (t *Ticker) C() <-chan time.Time {
	if t.ticker == nil {
		return nil
	}
	return t.ticker.C
}

// Running reports whether a timer is armed.
func (t *Ticker) Running() bool {
	return t.ticker != nil
}

// Period returns the period of the last Reset.
func (t *Ticker) Period() time.Duration {
	return t.period
}
