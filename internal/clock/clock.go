// Package clock lets timer-driven components run against real time in
// production and a manually fired ticker in tests.
package clock

import (
	"sync"
	"time"
)

// Ticker is the part of time.Ticker the schedulers depend on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

// NewTicker is the production TickerFactory.
func NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// ManualTicker only ticks when Fire is called.
type ManualTicker struct {
	ch chan time.Time

	mu      sync.Mutex
	stopped bool
	period  time.Duration
}

func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time)}
}

// Factory returns a TickerFactory that always hands out m.
func (m *ManualTicker) Factory() TickerFactory {
	return func(d time.Duration) Ticker {
		m.mu.Lock()
		m.period = d
		m.mu.Unlock()
		return m
	}
}

func (m *ManualTicker) C() <-chan time.Time { return m.ch }

func (m *ManualTicker) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

// Stopped reports whether the owner released the ticker.
func (m *ManualTicker) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Period is the interval the ticker was created with.
func (m *ManualTicker) Period() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.period
}

// Fire delivers one tick and blocks until the owner receives it.
// It returns false if the ticker was stopped or nobody received the tick within timeout.
func (m *ManualTicker) Fire(timeout time.Duration) bool {
	if m.Stopped() {
		return false
	}
	select {
	case m.ch <- time.Now():
		return true
	case <-time.After(timeout):
		return false
	}
}
