package headless

import (
	"slices"
	"time"

	"github.com/aretw0/trialkit/pkg/ports"
)

type press struct {
	name     string
	at       time.Duration
	relative bool
}

// Keyboard replays scripted key presses against a clock, usually the display's.
type Keyboard struct {
	clock   func() time.Duration
	resetAt time.Duration
	pending []press
}

// NewKeyboard creates a keyboard reading time from clock.
func NewKeyboard(clock func() time.Duration) *Keyboard {
	return &Keyboard{clock: clock}
}

// PressAt schedules a press at an absolute clock time.
func (k *Keyboard) PressAt(name string, at time.Duration) *Keyboard {
	k.pending = append(k.pending, press{name: name, at: at})
	return k
}

// PressAfter schedules a press rt after the next clock reset, which phases
// perform on their onset flip.
func (k *Keyboard) PressAfter(name string, rt time.Duration) *Keyboard {
	k.pending = append(k.pending, press{name: name, at: rt, relative: true})
	return k
}

// ResetClock anchors relative presses and restarts reaction times.
func (k *Keyboard) ResetClock() {
	k.resetAt = k.clock()
	for i := range k.pending {
		if k.pending[i].relative {
			k.pending[i].at += k.resetAt
			k.pending[i].relative = false
		}
	}
}

// GetKeys returns due presses matching keys (all when keys is empty) and
// removes them from the buffer. Non-matching presses stay buffered.
func (k *Keyboard) GetKeys(keys []string, waitRelease bool) []ports.KeyPress {
	now := k.clock()
	var out []ports.KeyPress
	rest := k.pending[:0]
	for _, p := range k.pending {
		due := !p.relative && p.at <= now
		if due && (len(keys) == 0 || slices.Contains(keys, p.name)) {
			out = append(out, ports.KeyPress{Name: p.name, RT: p.at - k.resetAt})
			continue
		}
		rest = append(rest, p)
	}
	k.pending = rest
	return out
}

// ClearEvents drops every press that is already due.
func (k *Keyboard) ClearEvents() {
	now := k.clock()
	rest := k.pending[:0]
	for _, p := range k.pending {
		if p.relative || p.at > now {
			rest = append(rest, p)
		}
	}
	k.pending = rest
}

// Pending counts presses not yet consumed.
func (k *Keyboard) Pending() int {
	return len(k.pending)
}
