package phase

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math/rand/v2"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/ports"
	"github.com/aretw0/trialkit/pkg/sim"
	"github.com/aretw0/trialkit/pkg/trigger"
)

// ErrInvalidDisplayMode is returned for a post-response display other than stimuli or blank.
var ErrInvalidDisplayMode = errors.New("post-response display must be stimuli or blank")

// ErrNoInput is returned when a human-mode phase must wait for a key but has no input device.
var ErrNoInput = errors.New("phase needs an input device")

// ErrMaxWaitExceeded is returned when WaitAndContinue runs past its ceiling.
var ErrMaxWaitExceeded = domain.ErrMaxWaitExceeded

// TrialContext identifies the trial a phase belongs to. It feeds observations
// and trigger metadata.
type TrialContext struct {
	TrialID     string
	BlockID     string
	ConditionID string
	StimID      string
	TaskFactors map[string]any
}

// Engine executes phases of one label. It is reused sequentially, never concurrently.
type Engine struct {
	label    string
	display  ports.Display
	input    ports.InputDevice
	triggers *trigger.Runtime
	ctx      *sim.Context
	sink     ports.AuditSink
	logger   *slog.Logger
	rng      *rand.Rand
	now      func() time.Time
	stimuli  []ports.Stimulus
	state    *State
	trial    TrialContext
	hooks    hooks

	rec       *Record
	onset     time.Duration
	onsetWall time.Time
	lastFlip  time.Duration
	closed    bool
}

// Option configures the Engine.
type Option func(*Engine)

// WithInput sets the input device polled in human mode.
func WithInput(input ports.InputDevice) Option {
	return func(e *Engine) {
		e.input = input
	}
}

// WithTriggers sets the trigger runtime.
func WithTriggers(rt *trigger.Runtime) Option {
	return func(e *Engine) {
		e.triggers = rt
	}
}

// WithContext sets the run context. Without one the engine runs in human mode.
func WithContext(ctx *sim.Context) Option {
	return func(e *Engine) {
		e.ctx = ctx
	}
}

// WithSink sets the audit sink for phase records. It defaults to the context sink.
func WithSink(sink ports.AuditSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRNG sets the generator used for duration ranges. It defaults to the context RNG.
func WithRNG(rng *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = rng
	}
}

// WithClock overrides the wall clock used for *_global fields.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithStatePrefix overrides the state key prefix. "" stores raw keys.
func WithStatePrefix(prefix string) Option {
	return func(e *Engine) {
		e.state.prefix = prefix
	}
}

// New creates an engine for the phase label drawing on display.
func New(label string, display ports.Display, opts ...Option) *Engine {
	e := &Engine{
		label:   label,
		display: display,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		state:   newState(label),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ctx != nil {
		if e.sink == nil {
			e.sink = e.ctx.Sink
		}
		if e.rng == nil {
			e.rng = e.ctx.RNG
		}
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return e
}

// Label returns the phase label.
func (e *Engine) Label() string {
	return e.label
}

// AddStim attaches stimuli. Sounds (ports.Player) are played on onset, never drawn.
func (e *Engine) AddStim(stims ...ports.Stimulus) error {
	for i, s := range stims {
		if s == nil {
			return fmt.Errorf("stimulus %d of %s is nil: %w", i, e.label, domain.ErrUnsupportedStimulus)
		}
	}
	e.stimuli = append(e.stimuli, stims...)
	return nil
}

// ClearStimuli detaches every stimulus.
func (e *Engine) ClearStimuli() *Engine {
	e.stimuli = nil
	return e
}

// State returns the phase state bag.
func (e *Engine) State() *State {
	return e.state
}

// Flush merges the state bag into target, usually the trial record.
func (e *Engine) Flush(target map[string]any) *Engine {
	e.state.Flush(target)
	return e
}

// SetTrialContext records the trial identity used by observations and triggers.
func (e *Engine) SetTrialContext(tc TrialContext) *Engine {
	e.trial = tc
	e.state.Set("trial_id", tc.TrialID)
	if tc.BlockID != "" {
		e.state.Set("block_id", tc.BlockID)
	}
	if tc.ConditionID != "" {
		e.state.Set("condition_id", tc.ConditionID)
	}
	if tc.StimID != "" {
		e.state.Set("stim_id", tc.StimID)
	}
	if tc.TaskFactors != nil {
		e.state.Set("task_factors", tc.TaskFactors)
	}
	return e
}

// SendTrigger emits code immediately.
func (e *Engine) SendTrigger(code int) error {
	if e.triggers == nil {
		return nil
	}
	ev := domain.TriggerEvent{Name: "manual", Code: &code, Meta: e.triggerMeta("manual", nil)}
	return e.triggers.Emit(ev, trigger.Now, nil)
}

func (e *Engine) automated() bool {
	return e.ctx.Automated() && e.ctx.Responder != nil
}

func (e *Engine) begin(verb string) {
	e.rec = &Record{
		RecordHeader: domain.RecordHeader{Type: domain.RecordPhase},
		Label:        e.label,
		Verb:         verb,
	}
	e.closed = false
	e.onset = 0
	e.onsetWall = time.Time{}
}

func (e *Engine) finish() *Record {
	if !e.closed {
		e.stampClose(e.lastFlip)
	}
	e.rec.State = e.state.Values()
	if e.sink != nil {
		e.sink.Log(e.rec)
	}
	e.logger.Debug("phase finished",
		"label", e.label,
		"verb", e.rec.Verb,
		"frames", e.rec.Frames,
		"responded", e.rec.Responded,
		"timed_out", e.rec.TimedOut,
	)
	return e.rec
}

func (e *Engine) flip() time.Duration {
	e.lastFlip = e.display.Flip()
	return e.lastFlip
}

func (e *Engine) elapsed() time.Duration {
	return e.lastFlip - e.onset
}

func (e *Engine) drawVisuals() {
	for _, s := range e.stimuli {
		if _, ok := s.(ports.Player); ok {
			continue
		}
		s.Draw()
	}
}

func (e *Engine) players() []ports.Player {
	var out []ports.Player
	for _, s := range e.stimuli {
		if p, ok := s.(ports.Player); ok {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) longestSound() time.Duration {
	var longest time.Duration
	for _, p := range e.players() {
		longest = max(longest, p.Duration())
	}
	return longest
}

// armOnset schedules, in order: input clear, input clock reset, onset stamp,
// onset trigger and sound playback.
func (e *Engine) armOnset(clearInput bool, onsetTrigger *int) error {
	if clearInput && e.input != nil {
		input := e.input
		e.display.OnFlip(func(time.Duration) { input.ClearEvents() })
		if r, ok := input.(ports.ClockResetter); ok {
			e.display.OnFlip(func(time.Duration) { r.ResetClock() })
		}
	}
	e.display.OnFlip(func(t time.Duration) { e.stampOnset(t, onsetTrigger) })
	if err := e.emit(onsetTrigger, trigger.Flip, "onset", nil); err != nil {
		return err
	}
	for _, p := range e.players() {
		player := p
		e.display.OnFlip(func(time.Duration) { player.Play() })
	}
	return nil
}

func (e *Engine) stampOnset(t time.Duration, code *int) {
	e.onset = t
	e.onsetWall = e.now()
	e.rec.Onset = t
	e.rec.OnsetWall = e.onsetWall
	e.state.Set("onset_time", t.Seconds())
	e.state.Set("onset_time_global", epochSeconds(e.onsetWall))
	if code != nil {
		e.state.Set("onset_trigger", *code)
	}
}

func (e *Engine) stampClose(t time.Duration) {
	e.setClose(t)
}

func (e *Engine) stampOffset(t time.Duration, code *int) {
	e.setClose(t)
	if code != nil {
		e.state.Set("offset_trigger", *code)
	}
}

func (e *Engine) setClose(t time.Duration) {
	if t < e.onset {
		t = e.onset
	}
	e.closed = true
	e.rec.Close = t
	e.rec.CloseWall = e.onsetWall.Add(t - e.onset)
	e.state.Set("close_time", t.Seconds())
	e.state.Set("close_time_global", epochSeconds(e.rec.CloseWall))
}

func (e *Engine) emit(code *int, when trigger.When, kind string, extra map[string]any) error {
	if e.triggers == nil || code == nil {
		return nil
	}
	ev := domain.TriggerEvent{
		Name: e.label + "_" + kind,
		Code: code,
		Meta: e.triggerMeta(kind, extra),
	}
	var sched ports.FlipScheduler
	if when == trigger.Flip {
		sched = e.display
	}
	return e.triggers.Emit(ev, when, sched)
}

func (e *Engine) triggerMeta(kind string, extra map[string]any) map[string]any {
	meta := map[string]any{
		"unit_label": e.label,
		"kind":       kind,
	}
	if e.trial.TrialID != "" {
		meta["trial_id"] = e.trial.TrialID
	}
	if e.trial.BlockID != "" {
		meta["block_id"] = e.trial.BlockID
	}
	if e.trial.ConditionID != "" {
		meta["condition_id"] = e.trial.ConditionID
	}
	if e.trial.TaskFactors != nil {
		meta["task_factors"] = e.trial.TaskFactors
	}
	maps.Copy(meta, extra)
	return meta
}

// flipErr surfaces strict trigger failures raised inside flip callbacks.
func (e *Engine) flipErr() error {
	if e.triggers == nil {
		return nil
	}
	return e.triggers.Err()
}

func (e *Engine) observation(keys []string, deadline time.Duration) domain.Observation {
	obs := domain.NewObservation(e.label, keys, &deadline)
	onset := e.onset
	obs.PhaseOnset = &onset
	obs.TrialID = e.trial.TrialID
	obs.BlockID = e.trial.BlockID
	obs.ConditionID = e.trial.ConditionID
	obs.StimID = e.trial.StimID
	obs.TaskFactors = e.trial.TaskFactors
	obs.Mode = e.ctx.Mode
	return obs
}

// inject asks the adapter once. A nil key or RT means the subject will not answer.
func (e *Engine) inject(obs domain.Observation) (string, *time.Duration, error) {
	handled, err := e.ctx.Respond(obs)
	v := handled.Validation
	e.rec.Validation = &v
	if err != nil {
		return "", nil, fmt.Errorf("phase %s: %w", e.label, err)
	}
	return handled.Used.Key, handled.Used.RT, nil
}

func (e *Engine) feedback(outcome string, meta map[string]any) {
	if !e.automated() {
		return
	}
	e.ctx.Feedback(domain.Feedback{
		TrialID: e.trial.TrialID,
		Phase:   e.label,
		Outcome: outcome,
		Meta:    meta,
	})
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
