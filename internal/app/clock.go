package app

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultUrgencyThreshold is the remaining time at which the clock reports urgency.
const DefaultUrgencyThreshold = 30

// Ticker is the part of *time.Ticker the clock needs; tests substitute their own.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ *time.Ticker }

func (t stdTicker) C() <-chan time.Time { return t.Ticker.C }

// ClockOption customizes a Clock.
type ClockOption func(*Clock)

// WithInterval changes the cadence; one second unless overridden.
func WithInterval(d time.Duration) ClockOption {
	return func(c *Clock) { c.interval = d }
}

// WithTicker swaps the ticker factory.
func WithTicker(newTicker func(time.Duration) Ticker) ClockOption {
	return func(c *Clock) { c.newTicker = newTicker }
}

// WithUrgencyThreshold sets the seconds at or below which Urgent reports true.
func WithUrgencyThreshold(seconds int) ClockOption {
	return func(c *Clock) { c.urgency = seconds }
}

// Clock counts remaining seconds down once per interval. Reaching zero calls
// the expiry callback exactly once and stops the cadence. The ticked value is
// for display; resume always recomputes remaining time from the start time.
type Clock struct {
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	urgency   int

	mu        sync.Mutex
	remaining int
	running   bool
	gen       uint64
	cancel    context.CancelFunc
	onTick    func(remaining int)
	onExpire  func()
}

// NewClock builds a stopped clock.
func NewClock(opts ...ClockOption) *Clock {
	c := &Clock{
		interval: time.Second,
		newTicker: func(d time.Duration) Ticker {
			return stdTicker{time.NewTicker(d)}
		},
		urgency: DefaultUrgencyThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins counting down from initial. onTick sees every decremented value,
// onExpire runs once when zero is reached. Either callback may be nil. A
// previous run is stopped first.
func (c *Clock) Start(initial int, onTick func(remaining int), onExpire func()) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	c.remaining = max(initial, 0)
	c.onTick = onTick
	c.onExpire = onExpire

	if c.remaining == 0 {
		c.running = false
		c.cancel = nil
		c.mu.Unlock()
		if onExpire != nil {
			onExpire()
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.running = true
	c.cancel = cancel
	gen := c.gen
	ticker := c.newTicker(c.interval)
	c.mu.Unlock()

	go c.run(ctx, gen, ticker)
}

func (c *Clock) run(ctx context.Context, gen uint64, ticker Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if _, ok := c.tick(gen); !ok {
				return
			}
		}
	}
}

// Tick advances the clock by one step outside the cadence. It returns false
// when the clock is not running, so a stopped or expired clock never moves.
func (c *Clock) Tick() (int, bool) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	return c.tick(gen)
}

func (c *Clock) tick(gen uint64) (int, bool) {
	c.mu.Lock()
	if !c.running || gen != c.gen {
		remaining := c.remaining
		c.mu.Unlock()
		return remaining, false
	}

	c.remaining = max(c.remaining-1, 0)
	remaining := c.remaining
	onTick := c.onTick
	var onExpire func()
	if remaining == 0 {
		c.running = false
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		onExpire = c.onExpire
	}
	c.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if onExpire != nil {
		onExpire()
	}
	return remaining, remaining > 0
}

// Stop halts the cadence permanently. It does not wait for the tick goroutine,
// so it is safe to call from inside a tick callback.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Running reports whether ticks are still being applied.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Remaining returns the displayed remaining seconds.
func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Formatted renders the remaining time as MM:SS.
func (c *Clock) Formatted() string {
	return FormatRemaining(c.Remaining())
}

// Urgent reports whether the remaining time is at or below the threshold.
func (c *Clock) Urgent() bool {
	return IsUrgent(c.Remaining(), c.urgency)
}

// FormatRemaining renders seconds as zero-padded MM:SS. Minutes do not wrap at 60.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// IsUrgent applies the urgency threshold to a remaining-time value.
func IsUrgent(remaining, threshold int) bool {
	return remaining <= threshold
}
