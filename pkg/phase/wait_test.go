package phase_test

import (
	"testing"
	"time"

	"github.com/aretw0/trialkit/pkg/adapters/headless"
	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/phase"
	"github.com/aretw0/trialkit/pkg/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitAndContinue_MinWait(t *testing.T) {
	r := newRig()
	r.keyboard.PressAfter("space", 10*time.Millisecond)
	r.keyboard.PressAfter("space", 80*time.Millisecond)
	e := r.engine("instructions")

	rec, err := e.WaitAndContinue([]string{"space"}, phase.MinWait(50*time.Millisecond))
	require.NoError(t, err)

	assert.Equal(t, 80*time.Millisecond, *rec.RT)
	assert.Equal(t, 90*time.Millisecond, rec.Close)
	v, _ := e.State().Get("response")
	assert.Equal(t, "space", v)
}

func TestWaitAndContinue_SoundSetsMinWait(t *testing.T) {
	r := newRig()
	r.keyboard.PressAfter("space", 10*time.Millisecond)
	r.keyboard.PressAfter("space", 40*time.Millisecond)
	e := r.engine("instructions")
	require.NoError(t, e.AddStim(headless.NewSound("voice", 30*time.Millisecond)))

	rec, err := e.WaitAndContinue([]string{"space"})
	require.NoError(t, err)
	assert.Equal(t, 40*time.Millisecond, *rec.RT)
}

func TestWaitAndContinue_NeedsInput(t *testing.T) {
	r := newRig()
	e := phase.New("instructions", r.display)
	_, err := e.WaitAndContinue([]string{"space"})
	assert.ErrorIs(t, err, phase.ErrNoInput)
}

func TestWaitAndContinue_Injected(t *testing.T) {
	r := newRig()
	ctx := simContext(t, domain.ModeSim, sim.NewScripted("space", 100*time.Millisecond), r.audit)
	e := r.engine("instructions", phase.WithContext(ctx))

	rec, err := e.WaitAndContinue([]string{"space"}, phase.MinWait(300*time.Millisecond), phase.Terminate())
	require.NoError(t, err)

	assert.Equal(t, 300*time.Millisecond, *rec.RT)
	assert.Equal(t, 310*time.Millisecond, rec.Close)
	assert.True(t, r.display.Closed())
}

func TestWaitAndContinue_MaxWaitExceeded(t *testing.T) {
	r := newRig()
	ctx := simContext(t, domain.ModeSim, sim.NullResponder{}, r.audit, func(c *sim.Config) {
		c.MaxWait = 100 * time.Millisecond
	})
	e := r.engine("instructions", phase.WithContext(ctx))

	_, err := e.WaitAndContinue([]string{"space"})
	assert.ErrorIs(t, err, domain.ErrMaxWaitExceeded)
	assert.LessOrEqual(t, r.display.Flips(), 12)
}
