package domain

import "time"

// TriggerEvent is a hardware-agnostic trigger. Build one per occurrence and hand it
// to the trigger runtime exactly once.
type TriggerEvent struct {
	Name    string
	Code    *int
	Payload []byte

	// PulseWidth and ResetCode follow TTL-style conventions and need driver support.
	PulseWidth *time.Duration
	ResetCode  *int

	Meta map[string]any
}

// CodeEvent builds a named event carrying a single integer code.
func CodeEvent(name string, code int) TriggerEvent {
	return TriggerEvent{Name: name, Code: &code}
}

// Empty reports whether the event carries nothing a driver could send.
func (e TriggerEvent) Empty() bool {
	return e.Code == nil && e.Payload == nil
}
