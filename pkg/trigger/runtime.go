package trigger

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/ports"
)

// Runtime owns one driver and the emission sequence of a run.
// It is driven from the single phase loop and does no locking.
type Runtime struct {
	driver ports.Driver
	name   string
	strict bool
	sink   ports.AuditSink
	now    func() time.Time
	logger *slog.Logger

	nextID   uint64
	deferred error
}

// Option configures the Runtime.
type Option func(*Runtime)

// WithName overrides the driver name written to audit records.
func WithName(name string) Option {
	return func(r *Runtime) {
		r.name = name
	}
}

// WithStrict turns send failures and capability gaps into returned errors.
func WithStrict(strict bool) Option {
	return func(r *Runtime) {
		r.strict = strict
	}
}

// WithSink sets the audit sink.
func WithSink(sink ports.AuditSink) Option {
	return func(r *Runtime) {
		r.sink = sink
	}
}

// WithClock overrides the wall clock used for t_planned and t_sent.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// New creates a Runtime. A nil driver sends nothing but still audits.
func New(driver ports.Driver, opts ...Option) *Runtime {
	if driver == nil {
		driver = nopDriver{}
	}
	r := &Runtime{
		driver: driver,
		name:   driver.Name(),
		sink:   nopSink{},
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sink == nil {
		r.sink = nopSink{}
	}
	return r
}

// Driver returns the wrapped driver.
func (r *Runtime) Driver() ports.Driver {
	return r.driver
}

// Strict reports whether failures are returned.
func (r *Runtime) Strict() bool {
	return r.strict
}

// Open opens the driver.
func (r *Runtime) Open() error {
	if err := r.driver.Open(); err != nil {
		return fmt.Errorf("failed to open trigger driver %s: %w", r.name, err)
	}
	return nil
}

// Close closes the driver.
func (r *Runtime) Close() error {
	if err := r.driver.Close(); err != nil {
		return fmt.Errorf("failed to close trigger driver %s: %w", r.name, err)
	}
	return nil
}

// Send emits a bare code immediately.
func (r *Runtime) Send(code int) error {
	return r.Emit(domain.CodeEvent("manual", code), Now, nil)
}

// Emit plans and executes ev. Flip emissions register a callback on sched and
// return once planned; their strict failures surface through Err.
func (r *Runtime) Emit(ev domain.TriggerEvent, when When, sched ports.FlipScheduler) error {
	if ev.Empty() {
		rec := r.newRecord(domain.RecordTriggerSkipped, ev)
		rec.When = when
		rec.Reason = "code_and_payload_none"
		r.sink.Log(rec)
		return nil
	}
	if when != Flip {
		when = Now
	}
	if when == Flip && sched == nil {
		return fmt.Errorf("emit %q: %w", ev.Name, domain.ErrFlipSchedulerRequired)
	}
	if err := r.checkCapabilities(ev, when); err != nil {
		return err
	}

	r.nextID++
	id := r.nextID
	planned := r.newRecord(domain.RecordTriggerPlanned, ev)
	planned.EmitID = id
	planned.When = when
	planned.OnFlip = when == Flip
	planned.TPlanned = epochSeconds(r.now())
	r.sink.Log(planned)

	if when == Flip {
		tPlanned := planned.TPlanned
		sched.OnFlip(func(flip time.Duration) {
			if err := r.execute(id, ev, when, tPlanned, &flip); err != nil && r.deferred == nil {
				r.deferred = err
			}
		})
		return nil
	}
	return r.execute(id, ev, when, planned.TPlanned, nil)
}

// Err returns and clears the first strict failure raised inside a flip callback.
func (r *Runtime) Err() error {
	err := r.deferred
	r.deferred = nil
	return err
}

func (r *Runtime) execute(id uint64, ev domain.TriggerEvent, when When, tPlanned float64, flip *time.Duration) error {
	sendErr := r.send(ev, when == Now)

	executed := r.newRecord(domain.RecordTriggerExecuted, ev)
	executed.EmitID = id
	executed.When = when
	executed.OnFlip = flip != nil
	executed.TPlanned = tPlanned
	sent := epochSeconds(r.now())
	executed.TSent = &sent
	if flip != nil {
		f := flip.Seconds()
		executed.TFlip = &f
	}
	if sendErr != nil {
		executed.Error = sendErr.Error()
	}
	r.sink.Log(executed)

	if sendErr == nil {
		r.logger.Debug("trigger sent", "emit_id", id, "event", ev.Name, "when", when)
		return nil
	}
	r.logger.Warn("trigger send failed", "emit_id", id, "event", ev.Name, "driver", r.name, "err", sendErr)
	if r.strict {
		return fmt.Errorf("trigger %q via %s: %w", ev.Name, r.name, sendErr)
	}
	return nil
}

func (r *Runtime) send(ev domain.TriggerEvent, wait bool) error {
	if ev.PulseWidth != nil {
		if ps, ok := r.driver.(ports.PulseSender); ok {
			return ps.SendPulse(ev, wait)
		}
	}
	if err := r.driver.Send(ev, wait); err != nil {
		return err
	}
	if ev.PulseWidth == nil && ev.ResetCode != nil {
		if rs, ok := r.driver.(ports.Resetter); ok {
			return rs.Reset(*ev.ResetCode)
		}
	}
	return nil
}

func (r *Runtime) checkCapabilities(ev domain.TriggerEvent, when When) error {
	var missing string
	_, canPulse := r.driver.(ports.PulseSender)
	_, canReset := r.driver.(ports.Resetter)
	switch {
	case ev.PulseWidth != nil && !canPulse:
		missing = "send_pulse"
	case ev.PulseWidth == nil && ev.ResetCode != nil && !canReset:
		missing = "reset"
	default:
		return nil
	}

	rec := r.newRecord(domain.RecordTriggerCapabilityMissing, ev)
	rec.When = when
	rec.Missing = missing
	r.sink.Log(rec)
	r.logger.Warn("trigger driver lacks capability", "driver", r.name, "missing", missing, "event", ev.Name)
	if r.strict {
		return fmt.Errorf("driver %s cannot %s for %q: %w", r.name, missing, ev.Name, domain.ErrCapabilityMissing)
	}
	return nil
}

type nopDriver struct{}

func (nopDriver) Name() string                         { return "none" }
func (nopDriver) Open() error                          { return nil }
func (nopDriver) Close() error                         { return nil }
func (nopDriver) Send(domain.TriggerEvent, bool) error { return nil }

type nopSink struct{}

func (nopSink) Log(domain.Record) {}
