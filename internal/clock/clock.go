// Package clock supplies the time source shared by trials and the session loop.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time and creates tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is the wall clock. Its readings carry Go's monotonic component so
// durations between them are immune to wall-clock adjustments.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// NewTicker wraps time.NewTicker.
func (Real) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Manual is a clock that only moves when Advance is called. Every live ticker
// receives exactly one tick per Advance, delivered synchronously, so a test
// knows the consumer has picked the tick up once Advance returns.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManual creates a manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock without firing tickers.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// NewTicker registers a ticker that fires on every Advance. The interval is
// ignored.
func (m *Manual) NewTicker(time.Duration) Ticker {
	t := &manualTicker{c: make(chan time.Time), done: make(chan struct{})}
	m.mu.Lock()
	m.tickers = append(m.tickers, t)
	m.mu.Unlock()
	return t
}

// Tickers reports how many tickers are still live.
func (m *Manual) Tickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickers {
		if !t.stopped() {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d and fires every live ticker.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	live := m.tickers[:0]
	for _, t := range m.tickers {
		if !t.stopped() {
			live = append(live, t)
		}
	}
	m.tickers = live
	targets := append([]*manualTicker(nil), live...)
	m.mu.Unlock()

	for _, t := range targets {
		select {
		case t.c <- now:
		case <-t.done:
		}
	}
}

type manualTicker struct {
	c    chan time.Time
	done chan struct{}
	once sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.once.Do(func() { close(t.done) })
}

func (t *manualTicker) stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
