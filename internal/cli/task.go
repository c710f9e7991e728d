package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/aretw0/trialkit/internal/config"
	"github.com/aretw0/trialkit/pkg/adapters/headless"
	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/phase"
	"github.com/aretw0/trialkit/pkg/ports"
)

// Event code fallbacks; triggers.codes in the config overrides each name.
const (
	codeInstructions = 1
	codeFixation     = 10
	codeCueLeft      = 21
	codeCueRight     = 22
	codeTargetLeft   = 31
	codeTargetRight  = 32
	codeResponseF    = 41
	codeResponseJ    = 42
	codeTimeout      = 49
	codeFeedback     = 50
)

const (
	keyLeft  = "f"
	keyRight = "j"
)

// Summary aggregates the outcome of a task run.
type Summary struct {
	Trials   int
	Hits     int
	Errors   int
	Timeouts int
	Rejected int
	MeanRT   time.Duration
}

// Accuracy is hits over completed trials.
func (s Summary) Accuracy() float64 {
	if s.Trials == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Trials)
}

type trialSpec struct {
	ID     string
	Cue    string
	Target string
}

func (t trialSpec) valid() bool { return t.Cue == t.Target }

func (t trialSpec) condition() string {
	if t.valid() {
		return "valid"
	}
	return "invalid"
}

func (t trialSpec) correctKey() string {
	if t.Target == "left" {
		return keyLeft
	}
	return keyRight
}

// buildTrials draws n cueing trials, three valid to one invalid, shuffled by rng.
func buildTrials(n int, rng *rand.Rand) []trialSpec {
	conditions := [][2]string{
		{"left", "left"}, {"right", "right"},
		{"left", "left"}, {"right", "right"},
		{"left", "left"}, {"right", "right"},
		{"left", "right"}, {"right", "left"},
	}
	trials := make([]trialSpec, n)
	for i := range trials {
		c := conditions[i%len(conditions)]
		trials[i] = trialSpec{Cue: c[0], Target: c[1]}
	}
	rng.Shuffle(len(trials), func(i, j int) {
		trials[i], trials[j] = trials[j], trials[i]
	})
	for i := range trials {
		trials[i].ID = fmt.Sprintf("t%03d", i+1)
	}
	return trials
}

// cueingTask is a spatial cueing paradigm: fixation, a jittered cue, then a
// two-alternative target answered with f or j.
type cueingTask struct {
	session  *config.Session
	engines  []*phase.Engine
	intro    *phase.Engine
	fixation *phase.Engine
	cue      *phase.Engine
	target   *phase.Engine
	feedback *phase.Engine
	visuals  map[string]ports.Stimulus
}

func newCueingTask(s *config.Session) *cueingTask {
	common := []phase.Option{
		phase.WithTriggers(s.Triggers),
		phase.WithContext(s.Context),
		phase.WithLogger(s.Logger),
	}
	t := &cueingTask{
		session:  s,
		intro:    phase.New("instructions", s.Display, common...),
		fixation: phase.New("fixation", s.Display, common...),
		cue:      phase.New("cue", s.Display, common...),
		target:   phase.New("target", s.Display, common...),
		feedback: phase.New("feedback", s.Display, common...),
		visuals:  make(map[string]ports.Stimulus),
	}
	t.engines = []*phase.Engine{t.fixation, t.cue, t.target, t.feedback}
	for _, name := range []string{
		"instructions", "fixation", "cue_left", "cue_right",
		"target_left", "target_right", "correct", "incorrect", "too_slow",
	} {
		t.visuals[name] = headless.NewVisual(name)
	}
	_ = t.intro.AddStim(t.visuals["instructions"])
	_ = t.fixation.AddStim(t.visuals["fixation"])
	return t
}

func (t *cueingTask) code(name string, fallback int) int {
	return t.session.Config.Code(name, fallback)
}

func (t *cueingTask) instructions() error {
	_, err := t.intro.WaitAndContinue([]string{"space"},
		phase.MinWait(500*time.Millisecond),
		phase.OnsetTrigger(t.code("instructions", codeInstructions)),
	)
	return err
}

// trial runs one trial and returns its data row.
func (t *cueingTask) trial(spec trialSpec) (map[string]any, *phase.Record, error) {
	tc := phase.TrialContext{
		TrialID:     spec.ID,
		BlockID:     "main",
		ConditionID: spec.condition(),
		StimID:      "target_" + spec.Target,
		TaskFactors: map[string]any{"cue": spec.Cue, "target": spec.Target},
	}
	for _, e := range t.engines {
		e.State().Reset()
		e.SetTrialContext(tc)
	}

	if _, err := t.fixation.Show(phase.Fixed(500*time.Millisecond),
		phase.OnsetTrigger(t.code("fixation", codeFixation)),
	); err != nil {
		return nil, nil, fmt.Errorf("fixation: %w", err)
	}

	cueCode := codeCueLeft
	if spec.Cue == "right" {
		cueCode = codeCueRight
	}
	if err := t.cue.ClearStimuli().AddStim(t.visuals["cue_"+spec.Cue]); err != nil {
		return nil, nil, err
	}
	if _, err := t.cue.Show(phase.Range(300*time.Millisecond, 600*time.Millisecond),
		phase.OnsetTrigger(t.code("cue_"+spec.Cue, cueCode)),
	); err != nil {
		return nil, nil, fmt.Errorf("cue: %w", err)
	}

	targetCode := codeTargetLeft
	if spec.Target == "right" {
		targetCode = codeTargetRight
	}
	if err := t.target.ClearStimuli().AddStim(t.visuals["target_"+spec.Target]); err != nil {
		return nil, nil, err
	}
	rec, err := t.target.CaptureResponse([]string{keyLeft, keyRight}, phase.Fixed(time.Second),
		phase.OnsetTrigger(t.code("target_"+spec.Target, targetCode)),
		phase.CorrectKeys(spec.correctKey()),
		phase.ResponseTriggers(map[string]int{
			keyLeft:  t.code("response_f", codeResponseF),
			keyRight: t.code("response_j", codeResponseJ),
		}),
		phase.TimeoutTrigger(t.code("timeout", codeTimeout)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("target: %w", err)
	}

	outcome := "too_slow"
	switch {
	case rec.Hit:
		outcome = "correct"
	case rec.Responded:
		outcome = "incorrect"
	}
	if err := t.feedback.ClearStimuli().AddStim(t.visuals[outcome]); err != nil {
		return nil, nil, err
	}
	if _, err := t.feedback.Show(phase.Fixed(300*time.Millisecond),
		phase.OnsetTrigger(t.code("feedback", codeFeedback)),
	); err != nil {
		return nil, nil, fmt.Errorf("feedback: %w", err)
	}

	row := map[string]any{
		"trial_id":    spec.ID,
		"block_id":    tc.BlockID,
		"condition":   tc.ConditionID,
		"cue":         spec.Cue,
		"target":      spec.Target,
		"correct_key": spec.correctKey(),
		"outcome":     outcome,
	}
	for _, e := range t.engines {
		e.Flush(row)
	}
	return row, rec, nil
}

// RunTask runs the cueing task on a built session, writing one JSON row per
// trial to rows. It stops between trials when ctx is cancelled.
func RunTask(ctx context.Context, s *config.Session, rows io.Writer) (Summary, error) {
	if s.Info.Mode == domain.ModeHuman {
		return Summary{}, ErrHumanMode
	}
	task := newCueingTask(s)
	enc := json.NewEncoder(rows)

	var sum Summary
	var rtTotal time.Duration
	var rtCount int

	if err := task.instructions(); err != nil {
		return sum, fmt.Errorf("instructions: %w", err)
	}
	for _, spec := range buildTrials(s.Config.Task.Trials, s.Context.RNG) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		row, rec, err := task.trial(spec)
		if err != nil {
			return sum, fmt.Errorf("trial %s: %w", spec.ID, err)
		}
		if err := enc.Encode(row); err != nil {
			return sum, fmt.Errorf("write trial row: %w", err)
		}

		sum.Trials++
		switch {
		case rec.Hit:
			sum.Hits++
		case rec.Responded:
			sum.Errors++
		default:
			sum.Timeouts++
		}
		if rec.Validation != nil && rec.Validation.Status != domain.StatusOK {
			sum.Rejected++
		}
		if rec.RT != nil {
			rtTotal += *rec.RT
			rtCount++
		}
	}
	if rtCount > 0 {
		sum.MeanRT = rtTotal / time.Duration(rtCount)
	}
	s.Logger.Info("task finished",
		"trials", sum.Trials,
		"hits", sum.Hits,
		"timeouts", sum.Timeouts,
		"mean_rt", sum.MeanRT,
	)
	return sum, nil
}
