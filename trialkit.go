package trialkit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/trialkit/pkg/adapters/headless"
	"github.com/aretw0/trialkit/pkg/audit"
	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/drivers"
	"github.com/aretw0/trialkit/pkg/phase"
	"github.com/aretw0/trialkit/pkg/ports"
	"github.com/aretw0/trialkit/pkg/sim"
	"github.com/aretw0/trialkit/pkg/trigger"
)

// Version is the trialkit release.
const Version = "0.1.0"

// Rig is the high-level entry point for the library. It bundles a headless
// display and keyboard, a trigger runtime, the responder context and an
// in-memory audit trail, so a task only has to create phases.
type Rig struct {
	Display  *headless.Display
	Keyboard *headless.Keyboard
	Triggers *trigger.Runtime
	Context  *sim.Context
	Journal  *audit.Journal
	Recorder *audit.Recorder

	logger *slog.Logger
}

type rigSettings struct {
	driver    ports.Driver
	responder ports.Responder
	simCfg    sim.Config
	sinks     audit.Multi
	logger    *slog.Logger
	period    time.Duration
	strict    bool
}

// Option configures a Rig.
type Option func(*rigSettings)

// WithDriver sets the trigger driver; the memory driver is used by default.
func WithDriver(driver ports.Driver) Option {
	return func(s *rigSettings) {
		s.driver = driver
	}
}

// WithResponder sets the responder used in qa and sim modes. Automated
// sessions default to a scripted responder.
func WithResponder(r ports.Responder) Option {
	return func(s *rigSettings) {
		s.responder = r
	}
}

// WithSimConfig sets the validation policy and QA timing.
func WithSimConfig(cfg sim.Config) Option {
	return func(s *rigSettings) {
		s.simCfg = cfg
	}
}

// WithAuditSink adds a sink next to the in-memory recorder.
func WithAuditSink(sink ports.AuditSink) Option {
	return func(s *rigSettings) {
		s.sinks = append(s.sinks, sink)
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *rigSettings) {
		s.logger = logger
	}
}

// WithFramePeriod sets the headless refresh period.
func WithFramePeriod(period time.Duration) Option {
	return func(s *rigSettings) {
		s.period = period
	}
}

// WithStrictTriggers makes trigger failures abort phases.
func WithStrictTriggers(strict bool) Option {
	return func(s *rigSettings) {
		s.strict = strict
	}
}

// New builds a Rig for session and opens its trigger driver.
func New(session domain.SessionInfo, opts ...Option) (*Rig, error) {
	s := &rigSettings{
		simCfg: sim.DefaultConfig(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		period: headless.DefaultFramePeriod,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.driver == nil {
		s.driver = drivers.NewMemory()
	}
	session.Mode = domain.ParseMode(string(session.Mode))

	r := &Rig{
		Display:  headless.NewDisplay(s.period),
		Recorder: audit.NewRecorder(),
		logger:   s.logger,
	}
	r.Keyboard = headless.NewKeyboard(r.Display.Now)
	r.Journal = audit.NewJournal(
		audit.WithSession(session),
		audit.WithSink(append(audit.Multi{r.Recorder}, s.sinks...)),
	)
	r.Triggers = trigger.New(s.driver,
		trigger.WithStrict(s.strict),
		trigger.WithSink(r.Journal),
		trigger.WithLogger(s.logger),
	)
	if err := r.Triggers.Open(); err != nil {
		return nil, err
	}

	ctxOpts := []sim.ContextOption{sim.UseSink(r.Journal), sim.UseLogger(s.logger)}
	if session.Mode.Automated() {
		responder := s.responder
		if responder == nil {
			responder = sim.NewScripted("", sim.DefaultRT)
		}
		ctxOpts = append(ctxOpts, sim.UseResponder(responder, sim.LoadInfo{
			Source: "explicit",
			Name:   fmt.Sprintf("%T", responder),
		}))
	}
	ctx, err := sim.NewContext(session, s.simCfg, ctxOpts...)
	if err != nil {
		return nil, errors.Join(err, r.Triggers.Close())
	}
	r.Context = ctx
	return r, nil
}

// Phase creates a phase engine wired to the rig.
func (r *Rig) Phase(label string, opts ...phase.Option) *phase.Engine {
	base := []phase.Option{
		phase.WithInput(r.Keyboard),
		phase.WithTriggers(r.Triggers),
		phase.WithContext(r.Context),
		phase.WithLogger(r.logger),
	}
	return phase.New(label, r.Display, append(base, opts...)...)
}

// Close ends the responder session and closes the trigger driver.
func (r *Rig) Close() error {
	return errors.Join(r.Context.Close(), r.Triggers.Close())
}
