package drivers

import (
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
)

type settings struct {
	name      string
	output    io.Writer
	prefix    []byte
	postDelay time.Duration
	onStart   func(domain.TriggerEvent)
	onEnd     func(domain.TriggerEvent)
	logger    *slog.Logger
	sleep     func(time.Duration)
}

// Option configures a driver. Options a driver does not use are ignored.
type Option func(*settings)

// WithName overrides the driver name.
func WithName(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

// WithOutput makes the memory driver print every sent code to w.
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		s.output = w
	}
}

// WithPrefix sets the protocol bytes the serial driver writes before a code.
func WithPrefix(prefix []byte) Option {
	return func(s *settings) {
		s.prefix = append([]byte(nil), prefix...)
	}
}

// WithPostDelay makes the callable driver hold for d after a waited send.
func WithPostDelay(d time.Duration) Option {
	return func(s *settings) {
		s.postDelay = d
	}
}

// WithHooks sets callbacks run around a callable send.
func WithHooks(onStart, onEnd func(domain.TriggerEvent)) Option {
	return func(s *settings) {
		s.onStart = onStart
		s.onEnd = onEnd
	}
}

// WithLogger sets the logger used by drivers that swallow errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

func newSettings(name string, opts []Option) *settings {
	s := &settings{
		name:   name,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
