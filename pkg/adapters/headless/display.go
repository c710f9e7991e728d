package headless

import (
	"time"
)

// DefaultFramePeriod is a 60Hz refresh interval.
const DefaultFramePeriod = time.Second / 60

// Display is a virtual refresh-driven surface.
type Display struct {
	period  time.Duration
	now     time.Duration
	queue   []func(time.Duration)
	flips   int
	closed  bool
	onFlips []func(time.Duration)
}

// NewDisplay creates a display with the given frame period. A non-positive
// period falls back to 60Hz.
func NewDisplay(period time.Duration) *Display {
	if period <= 0 {
		period = DefaultFramePeriod
	}
	return &Display{period: period}
}

// OnFlip registers fn for the next flip. Callbacks run in registration order.
func (d *Display) OnFlip(fn func(flipTime time.Duration)) {
	d.queue = append(d.queue, fn)
}

// Flip advances the virtual clock by one period and runs the pending callbacks.
// Callbacks registered while flipping wait for the following flip.
func (d *Display) Flip() time.Duration {
	d.now += d.period
	d.flips++
	pending := d.queue
	d.queue = nil
	for _, fn := range pending {
		fn(d.now)
	}
	for _, fn := range d.onFlips {
		fn(d.now)
	}
	return d.now
}

// FramePeriod returns the refresh interval.
func (d *Display) FramePeriod() time.Duration {
	return d.period
}

// Now returns the time of the last flip.
func (d *Display) Now() time.Duration {
	return d.now
}

// Flips counts the flips so far.
func (d *Display) Flips() int {
	return d.flips
}

// Watch registers fn to run after every flip, after the one-shot callbacks.
func (d *Display) Watch(fn func(flipTime time.Duration)) {
	d.onFlips = append(d.onFlips, fn)
}

// Close marks the display closed.
func (d *Display) Close() error {
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *Display) Closed() bool {
	return d.closed
}
