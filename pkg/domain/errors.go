package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidDuration is returned when a duration argument is malformed (negative, inverted range, unset where required).
var ErrInvalidDuration = errors.New("invalid duration")

// ErrUnsupportedStimulus is returned when a stimulus cannot be attached to a phase.
var ErrUnsupportedStimulus = errors.New("unsupported stimulus")

// ErrNoWindow is returned when a fixed response window is requested but no window length can be derived.
var ErrNoWindow = errors.New("fixed response window requires a max duration or a timeout hook")

// ErrCapabilityMissing is returned in strict mode when an event needs a driver capability that is absent.
var ErrCapabilityMissing = errors.New("driver capability missing")

// ErrFlipSchedulerRequired is returned when a flip-scheduled emission has nowhere to register its callback.
var ErrFlipSchedulerRequired = errors.New("flip emission requires a flip scheduler")

// ErrMaxWaitExceeded is returned when an automated open-ended wait runs past its ceiling.
// It is fatal: it means the task is broken, not that the simulated subject did not answer.
var ErrMaxWaitExceeded = errors.New("automated wait exceeded max wait")

// ResponderActionError is raised by the responder adapter under the strict policy.
type ResponderActionError struct {
	Code    ReasonCode
	Message string
}

func (e *ResponderActionError) Error() string {
	return fmt.Sprintf("responder action rejected (%s): %s", e.Code, e.Message)
}
