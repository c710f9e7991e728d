package ports

import "github.com/aretw0/trialkit/pkg/domain"

// Driver is a device/protocol-level trigger transport. It only does I/O;
// timing and audit belong to the trigger runtime.
type Driver interface {
	Name() string
	Open() error
	Close() error
	Send(event domain.TriggerEvent, wait bool) error
}

// PulseSender is implemented by drivers that can hold a code for event.PulseWidth.
type PulseSender interface {
	SendPulse(event domain.TriggerEvent, wait bool) error
}

// Resetter is implemented by drivers that can write a reset code after a send.
type Resetter interface {
	Reset(code int) error
}
