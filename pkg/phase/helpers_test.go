package phase_test

import (
	"testing"
	"time"

	"github.com/aretw0/trialkit/pkg/adapters/headless"
	"github.com/aretw0/trialkit/pkg/audit"
	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/drivers"
	"github.com/aretw0/trialkit/pkg/phase"
	"github.com/aretw0/trialkit/pkg/ports"
	"github.com/aretw0/trialkit/pkg/sim"
	"github.com/aretw0/trialkit/pkg/trigger"
	"github.com/stretchr/testify/require"
)

const period = 10 * time.Millisecond

var fixedWall = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type rig struct {
	display  *headless.Display
	keyboard *headless.Keyboard
	driver   *drivers.Memory
	triggers *trigger.Runtime
	audit    *audit.Recorder
}

func newRig() *rig {
	d := headless.NewDisplay(period)
	r := &rig{
		display:  d,
		keyboard: headless.NewKeyboard(d.Now),
		driver:   drivers.NewMemory(),
		audit:    audit.NewRecorder(),
	}
	r.triggers = trigger.New(r.driver, trigger.WithSink(r.audit))
	return r
}

func (r *rig) engine(label string, opts ...phase.Option) *phase.Engine {
	base := []phase.Option{
		phase.WithInput(r.keyboard),
		phase.WithTriggers(r.triggers),
		phase.WithSink(r.audit),
		phase.WithClock(func() time.Time { return fixedWall }),
	}
	return phase.New(label, r.display, append(base, opts...)...)
}

func simContext(t *testing.T, mode domain.Mode, responder ports.Responder, sink ports.AuditSink, mutate ...func(*sim.Config)) *sim.Context {
	t.Helper()
	cfg := sim.DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	ctx, err := sim.NewContext(
		domain.SessionInfo{Mode: mode, Seed: 7},
		cfg,
		sim.UseResponder(responder, sim.LoadInfo{Source: "test"}),
		sim.UseSink(sink),
	)
	require.NoError(t, err)
	return ctx
}
