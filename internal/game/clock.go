// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package game

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultTPS is the tick rate used when none is configured.
const DefaultTPS = 60

// Tick is one clock tick, delivered to the host loop.
type Tick struct {
	N  int64
	At time.Time
	// Delta is the time since the previous tick; zero on the first.
	Delta time.Duration
}

// Clock produces ticks at a fixed rate. The ticker runs on its own
// goroutine; ticks reach the host only through Ticks so that all bus
// activity stays on the loop goroutine.
type Clock struct {
	name    string
	source  clock.Clock
	tps     int
	ticks   chan Tick
	paused  atomic.Bool
	current atomic.Int64
}

// ClockOption configures a Clock.
type ClockOption func(*Clock)

// WithTimeSource replaces the wall clock, for tests.
func WithTimeSource(c clock.Clock) ClockOption {
	return func(k *Clock) {
		if c != nil {
			k.source = c
		}
	}
}

// WithTPS sets ticks per second. Non-positive values keep DefaultTPS.
func WithTPS(tps int) ClockOption {
	return func(k *Clock) {
		if tps > 0 {
			k.tps = tps
		}
	}
}

// WithClockName names the clock in tick events.
func WithClockName(name string) ClockOption {
	return func(k *Clock) {
		k.name = name
	}
}

// NewClock creates a stopped clock.
func NewClock(opts ...ClockOption) *Clock {
	c := &Clock{
		name:   "main",
		source: clock.New(),
		tps:    DefaultTPS,
		ticks:  make(chan Tick),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the clock name.
func (c *Clock) Name() string { return c.name }

// TPS returns the configured ticks per second.
func (c *Clock) TPS() int { return c.tps }

// Interval returns the time between ticks.
func (c *Clock) Interval() time.Duration { return time.Second / time.Duration(c.tps) }

// Pause stops ticks from being produced. The counter is kept.
func (c *Clock) Pause() { c.paused.Store(true) }

// Unpause resumes ticking.
func (c *Clock) Unpause() { c.paused.Store(false) }

// Paused reports whether the clock is paused.
func (c *Clock) Paused() bool { return c.paused.Load() }

// CurrentTick returns how many ticks have been produced.
func (c *Clock) CurrentTick() int64 { return c.current.Load() }

// Ticks delivers ticks to the consumer.
func (c *Clock) Ticks() <-chan Tick { return c.ticks }

// Start begins ticking until ctx is done. The ticker exists when Start
// returns; the returned channel is closed once the clock goroutine exits.
func (c *Clock) Start(ctx context.Context) <-chan struct{} {
	ticker := c.source.Ticker(c.Interval())
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ticker.Stop()
		var last time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if c.paused.Load() {
				continue
			}
			now := c.source.Now()
			t := Tick{N: c.current.Add(1), At: now}
			if !last.IsZero() {
				t.Delta = now.Sub(last)
			}
			last = now
			select {
			case c.ticks <- t:
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}
