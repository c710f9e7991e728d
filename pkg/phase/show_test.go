package phase_test

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/aretw0/trialkit/pkg/adapters/headless"
	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/drivers"
	"github.com/aretw0/trialkit/pkg/phase"
	"github.com/aretw0/trialkit/pkg/sim"
	"github.com/aretw0/trialkit/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrames(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 1},
		{4 * time.Millisecond, 1},
		{10 * time.Millisecond, 1},
		{14 * time.Millisecond, 1},
		{15 * time.Millisecond, 2},
		{500 * time.Millisecond, 50},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, phase.Frames(tt.d, period), tt.d.String())
	}
	assert.Equal(t, 30, phase.Frames(500*time.Millisecond, headless.DefaultFramePeriod))
}

func TestFrames_MonotonicInDuration(t *testing.T) {
	for _, p := range []time.Duration{period, headless.DefaultFramePeriod, 8333 * time.Microsecond} {
		prev := 0
		for d := time.Duration(0); d <= 2*time.Second; d += 250 * time.Microsecond {
			n := phase.Frames(d, p)
			require.GreaterOrEqual(t, n, 1, "d=%s period=%s", d, p)
			require.GreaterOrEqual(t, n, prev, "d=%s period=%s", d, p)
			prev = n
		}
	}
}

func TestShow_FramesAndTriggers(t *testing.T) {
	r := newRig()
	fix := headless.NewVisual("fixation")
	e := r.engine("fixation")
	require.NoError(t, e.AddStim(fix))

	rec, err := e.Show(phase.Fixed(50*time.Millisecond), phase.OnsetTrigger(1), phase.OffsetTrigger(2))
	require.NoError(t, err)

	assert.Equal(t, 5, rec.Frames)
	assert.Equal(t, 5, r.display.Flips())
	assert.Equal(t, 5, fix.Draws)
	assert.Equal(t, 10*time.Millisecond, rec.Onset)
	assert.Equal(t, 50*time.Millisecond, rec.Close)
	assert.Equal(t, fixedWall.Add(40*time.Millisecond), rec.CloseWall)
	assert.Equal(t, []int{1, 2}, r.driver.Codes())

	executed := r.audit.OfType(domain.RecordTriggerExecuted)
	require.Len(t, executed, 2)
	onset := executed[0].(*trigger.Record)
	offset := executed[1].(*trigger.Record)
	assert.True(t, onset.OnFlip)
	assert.InDelta(t, 0.01, *onset.TFlip, 1e-9)
	assert.InDelta(t, 0.05, *offset.TFlip, 1e-9)

	st := e.State().Values()
	assert.Equal(t, 1, st["fixation_onset_trigger"])
	assert.Equal(t, 2, st["fixation_offset_trigger"])
	assert.InDelta(t, 0.05, st["fixation_duration"], 1e-9)

	phases := r.audit.OfType(domain.RecordPhase)
	require.Len(t, phases, 1)
	assert.Same(t, rec, phases[0])
}

func TestShow_PlannedBeforeExecuted(t *testing.T) {
	r := newRig()
	e := r.engine("cue")

	_, err := e.Show(phase.Fixed(30*time.Millisecond), phase.OnsetTrigger(11), phase.OffsetTrigger(12))
	require.NoError(t, err)

	assert.Equal(t, []domain.RecordType{
		domain.RecordTriggerPlanned,
		domain.RecordTriggerExecuted,
		domain.RecordTriggerPlanned,
		domain.RecordTriggerExecuted,
		domain.RecordPhase,
	}, r.audit.Types())
}

func TestShow_SingleFrame(t *testing.T) {
	r := newRig()
	e := r.engine("flash")

	rec, err := e.Show(phase.Fixed(period), phase.OnsetTrigger(1), phase.OffsetTrigger(2))
	require.NoError(t, err)

	assert.Equal(t, 1, r.display.Flips())
	assert.Equal(t, rec.Onset, rec.Close)
	assert.Equal(t, time.Duration(0), rec.Duration())
	assert.Equal(t, []int{1, 2}, r.driver.Codes())
}

func TestShow_AutoDurationFromSound(t *testing.T) {
	r := newRig()
	beep := headless.NewSound("beep", 30*time.Millisecond)
	e := r.engine("tone")
	require.NoError(t, e.AddStim(beep))

	rec, err := e.Show(phase.Auto())
	require.NoError(t, err)

	assert.Equal(t, 3, rec.Frames)
	assert.Equal(t, 1, beep.Plays)
}

func TestShow_RangeIsSeeded(t *testing.T) {
	run := func() int {
		r := newRig()
		e := r.engine("iti", phase.WithRNG(rand.New(rand.NewPCG(42, 0))))
		rec, err := e.Show(phase.Range(20*time.Millisecond, 60*time.Millisecond))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, rec.Frames, 2)
		assert.LessOrEqual(t, rec.Frames, 6)
		return rec.Frames
	}
	assert.Equal(t, run(), run())
}

func TestShow_InvalidDuration(t *testing.T) {
	e := newRig().engine("bad")

	_, err := e.Show(phase.Range(50*time.Millisecond, 10*time.Millisecond))
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = e.Show(phase.Fixed(-time.Second))
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)
}

func TestShow_NilStimulus(t *testing.T) {
	e := newRig().engine("bad")
	assert.ErrorIs(t, e.AddStim(nil), domain.ErrUnsupportedStimulus)
}

func TestShow_StrictFlipFailure(t *testing.T) {
	r := newRig()
	broken := drivers.NewCallable(func(any) error { return errors.New("port gone") })
	r.triggers = trigger.New(broken, trigger.WithStrict(true), trigger.WithSink(r.audit))
	e := r.engine("cue")

	_, err := e.Show(phase.Fixed(30*time.Millisecond), phase.OnsetTrigger(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port gone")
}

func TestShow_QAScaling(t *testing.T) {
	r := newRig()
	ctx := simContext(t, domain.ModeQA, nil, r.audit, func(c *sim.Config) {
		c.EnableScaling = true
		c.TimingScale = 0.1
		c.MinFrames = 2
	})
	e := r.engine("iti", phase.WithContext(ctx))

	rec, err := e.Show(phase.Fixed(time.Second))
	require.NoError(t, err)
	assert.True(t, rec.Scaled)
	assert.Equal(t, 10, rec.Frames)
	assert.Equal(t, 100*time.Millisecond, rec.Used)
	assert.Equal(t, time.Second, rec.Nominal)

	rec, err = e.Show(phase.Fixed(period))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Frames, "min frame floor")
	st := e.State().Values()
	assert.InDelta(t, 0.01, st["iti_duration_nominal"], 1e-9)
	assert.InDelta(t, 0.02, st["iti_duration_scaled"], 1e-9)
}

func TestShow_NoScalingOutsideQA(t *testing.T) {
	r := newRig()
	ctx := simContext(t, domain.ModeSim, nil, r.audit, func(c *sim.Config) {
		c.EnableScaling = true
		c.TimingScale = 0.1
	})
	e := r.engine("iti", phase.WithContext(ctx))

	rec, err := e.Show(phase.Fixed(100 * time.Millisecond))
	require.NoError(t, err)
	assert.False(t, rec.Scaled)
	assert.Equal(t, 10, rec.Frames)
}

func TestState_PrefixAndFlush(t *testing.T) {
	r := newRig()
	e := r.engine("cue")
	_, err := e.Show(phase.Fixed(20 * time.Millisecond))
	require.NoError(t, err)
	e.State().Set("color", "red").SetPrefixed("", "block", 3)

	v, ok := e.State().Get("color")
	require.True(t, ok)
	assert.Equal(t, "red", v)
	v, ok = e.State().Get("block")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	row := map[string]any{"trial": 1}
	e.Flush(row)
	assert.Equal(t, "red", row["cue_color"])
	assert.Equal(t, 3, row["block"])
	assert.Contains(t, row, "cue_onset_time")
	assert.Equal(t, 1, row["trial"])

	raw := r.engine("cue", phase.WithStatePrefix(""))
	raw.State().Set("color", "blue")
	assert.Equal(t, map[string]any{"color": "blue"}, raw.State().Values())
}
