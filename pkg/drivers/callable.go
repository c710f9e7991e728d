package drivers

import (
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
)

const defaultPostDelay = time.Millisecond

// SendFunc receives the payload when present, else the code.
type SendFunc func(value any) error

// Callable forwards events to a user function.
type Callable struct {
	*settings
	fn SendFunc
}

// NewCallable creates a callable driver with a 1ms post-send delay.
func NewCallable(fn SendFunc, opts ...Option) *Callable {
	s := newSettings("callable", append([]Option{WithPostDelay(defaultPostDelay)}, opts...))
	return &Callable{settings: s, fn: fn}
}

func (c *Callable) Name() string { return c.name }
func (c *Callable) Open() error  { return nil }
func (c *Callable) Close() error { return nil }

// Send calls the function. Hooks and the post delay only apply to waited sends,
// except the start hook which always runs.
func (c *Callable) Send(event domain.TriggerEvent, wait bool) error {
	if c.onStart != nil {
		c.onStart(event)
	}
	var value any
	switch {
	case event.Payload != nil:
		value = event.Payload
	case event.Code != nil:
		value = *event.Code
	}
	if err := c.fn(value); err != nil {
		return err
	}
	if wait && c.postDelay > 0 {
		c.sleep(c.postDelay)
	}
	if wait && c.onEnd != nil {
		c.onEnd(event)
	}
	return nil
}
