package ports

import "time"

// KeyPress is a buffered key event. RT is relative to the last clock reset.
type KeyPress struct {
	Name string
	RT   time.Duration
}

// InputDevice is a buffered response device.
type InputDevice interface {
	// GetKeys drains buffered presses whose name is in keys.
	GetKeys(keys []string, waitRelease bool) []KeyPress
	// ClearEvents discards everything buffered so far.
	ClearEvents()
}

// ClockResetter is implemented by devices that timestamp presses against their own clock.
type ClockResetter interface {
	ResetClock()
}
