package ports

import "time"

// FlipScheduler registers callbacks to run on the next display refresh.
// Callbacks registered before one flip run in registration order, and receive
// the flip timestamp.
type FlipScheduler interface {
	OnFlip(fn func(flipTime time.Duration))
}

// Display is a refresh-driven surface. Flip blocks until the refresh happens,
// runs every callback registered since the previous flip and returns the flip time.
type Display interface {
	FlipScheduler
	Flip() time.Duration
	FramePeriod() time.Duration
}

// Closer is implemented by displays that can be shut down at the end of a run.
type Closer interface {
	Close() error
}

// Stimulus is anything that can be drawn into the back buffer.
type Stimulus interface {
	Draw()
}

// Player is implemented by audio stimuli. Players are started on the onset flip
// and never drawn.
type Player interface {
	Stimulus
	Play()
	Duration() time.Duration
}
