package trigger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/aretw0/trialkit/pkg/audit"
	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/drivers"
	"github.com/aretw0/trialkit/pkg/ports"
	"github.com/aretw0/trialkit/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flipQueue struct {
	now     time.Duration
	pending []func(time.Duration)
}

func (q *flipQueue) OnFlip(fn func(time.Duration)) { q.pending = append(q.pending, fn) }

func (q *flipQueue) Flip() {
	q.now += 16 * time.Millisecond
	fns := q.pending
	q.pending = nil
	for _, fn := range fns {
		fn(q.now)
	}
}

type pulseDriver struct {
	*drivers.Memory
	pulses []domain.TriggerEvent
	resets []int
}

func (p *pulseDriver) SendPulse(ev domain.TriggerEvent, wait bool) error {
	p.pulses = append(p.pulses, ev)
	return nil
}

func (p *pulseDriver) Reset(code int) error {
	p.resets = append(p.resets, code)
	return nil
}

type brokenDriver struct{ *drivers.Memory }

func (brokenDriver) Send(domain.TriggerEvent, bool) error { return errors.New("cable unplugged") }

func stepClock() func() time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func newRuntime(d ports.Driver, strict bool) (*trigger.Runtime, *audit.Recorder) {
	rec := audit.NewRecorder()
	j := audit.NewJournal(audit.WithSink(rec))
	return trigger.New(d, trigger.WithSink(j), trigger.WithStrict(strict), trigger.WithClock(stepClock())), rec
}

func TestEmit_NowPlansThenExecutes(t *testing.T) {
	mem := drivers.NewMemory()
	rt, rec := newRuntime(mem, false)

	require.NoError(t, rt.Emit(domain.CodeEvent("onset", 10), trigger.Now, nil))

	require.Equal(t, []domain.RecordType{domain.RecordTriggerPlanned, domain.RecordTriggerExecuted}, rec.Types())
	planned := rec.Records[0].(*trigger.Record)
	executed := rec.Records[1].(*trigger.Record)
	assert.Equal(t, planned.EmitID, executed.EmitID)
	assert.Equal(t, "mock", planned.Driver)
	assert.False(t, planned.OnFlip)
	require.NotNil(t, executed.TSent)
	assert.GreaterOrEqual(t, *executed.TSent, planned.TPlanned)
	assert.Nil(t, executed.TFlip)
	assert.Less(t, planned.Seq, executed.Seq)
	assert.Equal(t, []int{10}, mem.Codes())
}

func TestEmit_FlipRunsOnNextFlip(t *testing.T) {
	mem := drivers.NewMemory()
	rt, rec := newRuntime(mem, false)
	q := &flipQueue{}

	require.NoError(t, rt.Emit(domain.CodeEvent("onset", 1), trigger.Flip, q))
	require.NoError(t, rt.Emit(domain.CodeEvent("marker", 2), trigger.Flip, q))
	assert.Equal(t, []domain.RecordType{domain.RecordTriggerPlanned, domain.RecordTriggerPlanned}, rec.Types())
	assert.Empty(t, mem.Codes(), "nothing is sent before the flip")

	q.Flip()

	assert.Equal(t, []int{1, 2}, mem.Codes(), "flip callbacks run in registration order")
	executed := rec.OfType(domain.RecordTriggerExecuted)
	require.Len(t, executed, 2)
	first := executed[0].(*trigger.Record)
	require.NotNil(t, first.TFlip)
	assert.InDelta(t, 0.016, *first.TFlip, 1e-9)
	assert.True(t, first.OnFlip)
	assert.Equal(t, uint64(1), first.EmitID)
}

func TestEmit_FlipWithoutScheduler(t *testing.T) {
	rt, rec := newRuntime(drivers.NewMemory(), false)
	err := rt.Emit(domain.CodeEvent("onset", 1), trigger.Flip, nil)
	assert.ErrorIs(t, err, domain.ErrFlipSchedulerRequired)
	assert.Empty(t, rec.Records)
}

func TestEmit_EmptyEventIsSkipped(t *testing.T) {
	mem := drivers.NewMemory()
	rt, rec := newRuntime(mem, true)

	require.NoError(t, rt.Emit(domain.TriggerEvent{Name: "nothing"}, trigger.Now, nil))

	require.Equal(t, []domain.RecordType{domain.RecordTriggerSkipped}, rec.Types())
	assert.Equal(t, "code_and_payload_none", rec.Records[0].(*trigger.Record).Reason)
	assert.Empty(t, mem.Sent())
}

func TestEmit_SendFailure(t *testing.T) {
	t.Run("Lenient", func(t *testing.T) {
		rt, rec := newRuntime(brokenDriver{drivers.NewMemory()}, false)
		require.NoError(t, rt.Emit(domain.CodeEvent("onset", 3), trigger.Now, nil))
		executed := rec.OfType(domain.RecordTriggerExecuted)
		require.Len(t, executed, 1)
		assert.Equal(t, "cable unplugged", executed[0].(*trigger.Record).Error)
	})

	t.Run("Strict", func(t *testing.T) {
		rt, rec := newRuntime(brokenDriver{drivers.NewMemory()}, true)
		err := rt.Emit(domain.CodeEvent("onset", 3), trigger.Now, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cable unplugged")
		assert.Len(t, rec.OfType(domain.RecordTriggerExecuted), 1, "the failure is audited before it is returned")
	})

	t.Run("StrictOnFlip", func(t *testing.T) {
		rt, _ := newRuntime(brokenDriver{drivers.NewMemory()}, true)
		q := &flipQueue{}
		require.NoError(t, rt.Emit(domain.CodeEvent("onset", 3), trigger.Flip, q))
		require.NoError(t, rt.Err())
		q.Flip()
		assert.Error(t, rt.Err())
		assert.NoError(t, rt.Err(), "Err clears after reading")
	})
}

func TestEmit_PulseWithoutCapability(t *testing.T) {
	pulse := 10 * time.Millisecond
	ev := domain.TriggerEvent{Name: "stim", Code: intPtr(5), PulseWidth: &pulse}

	t.Run("Lenient", func(t *testing.T) {
		mem := drivers.NewMemory()
		rt, rec := newRuntime(mem, false)

		require.NoError(t, rt.Emit(ev, trigger.Now, nil))

		assert.Equal(t, []domain.RecordType{
			domain.RecordTriggerCapabilityMissing,
			domain.RecordTriggerPlanned,
			domain.RecordTriggerExecuted,
		}, rec.Types())
		missing := rec.Records[0].(*trigger.Record)
		assert.Equal(t, "send_pulse", missing.Missing)
		require.NotNil(t, missing.PulseWidthMS)
		assert.InDelta(t, 10.0, *missing.PulseWidthMS, 1e-9)
		assert.Equal(t, []int{5}, mem.Codes(), "falls back to a plain send")
	})

	t.Run("Strict", func(t *testing.T) {
		mem := drivers.NewMemory()
		rt, rec := newRuntime(mem, true)

		err := rt.Emit(ev, trigger.Now, nil)

		assert.ErrorIs(t, err, domain.ErrCapabilityMissing)
		assert.Equal(t, []domain.RecordType{domain.RecordTriggerCapabilityMissing}, rec.Types())
		assert.Empty(t, mem.Sent())
	})
}

func TestEmit_ResetWithoutCapability(t *testing.T) {
	rt, rec := newRuntime(drivers.NewMemory(), false)
	ev := domain.TriggerEvent{Name: "stim", Code: intPtr(5), ResetCode: intPtr(0)}
	require.NoError(t, rt.Emit(ev, trigger.Now, nil))
	missing := rec.OfType(domain.RecordTriggerCapabilityMissing)
	require.Len(t, missing, 1)
	assert.Equal(t, "reset", missing[0].(*trigger.Record).Missing)
}

func TestEmit_PulseAndReset(t *testing.T) {
	d := &pulseDriver{Memory: drivers.NewMemory()}
	rt, rec := newRuntime(d, true)
	pulse := 5 * time.Millisecond

	require.NoError(t, rt.Emit(domain.TriggerEvent{Name: "p", Code: intPtr(1), PulseWidth: &pulse, ResetCode: intPtr(0)}, trigger.Now, nil))
	require.NoError(t, rt.Emit(domain.TriggerEvent{Name: "r", Code: intPtr(2), ResetCode: intPtr(0)}, trigger.Now, nil))

	assert.Len(t, d.pulses, 1)
	assert.Equal(t, []int{2}, d.Codes())
	assert.Equal(t, []int{0}, d.resets)
	assert.Empty(t, rec.OfType(domain.RecordTriggerCapabilityMissing))
}

func TestSend_ManualCode(t *testing.T) {
	mem := drivers.NewMemory()
	rt, rec := newRuntime(mem, false)
	require.NoError(t, rt.Open())
	require.NoError(t, rt.Send(99))
	require.NoError(t, rt.Close())
	assert.Equal(t, []int{99}, mem.Codes())
	assert.Equal(t, "manual", rec.Records[0].(*trigger.Record).EventName)
}

func TestEmitIDsAreUnique(t *testing.T) {
	rt, rec := newRuntime(nil, false)
	q := &flipQueue{}
	for i := 0; i < 5; i++ {
		when := trigger.Now
		if i%2 == 0 {
			when = trigger.Flip
		}
		require.NoError(t, rt.Emit(domain.CodeEvent("e", i), when, q))
	}
	q.Flip()

	plannedAt := map[uint64]uint64{}
	for _, r := range rec.OfType(domain.RecordTriggerPlanned) {
		tr := r.(*trigger.Record)
		_, dup := plannedAt[tr.EmitID]
		assert.False(t, dup)
		plannedAt[tr.EmitID] = tr.Seq
	}
	executed := rec.OfType(domain.RecordTriggerExecuted)
	require.Len(t, executed, 5)
	for _, r := range executed {
		tr := r.(*trigger.Record)
		seq, ok := plannedAt[tr.EmitID]
		require.True(t, ok)
		assert.Less(t, seq, tr.Seq)
		assert.Equal(t, "none", tr.Driver)
	}
}

func intPtr(v int) *int { return &v }

type resetOnlyDriver struct {
	*drivers.Memory
	resets []int
}

func (r *resetOnlyDriver) Reset(code int) error {
	r.resets = append(r.resets, code)
	return nil
}

func TestEmit_PulseFallbackSkipsReset(t *testing.T) {
	d := &resetOnlyDriver{Memory: drivers.NewMemory()}
	rt, rec := newRuntime(d, false)
	pulse := 5 * time.Millisecond

	require.NoError(t, rt.Emit(domain.TriggerEvent{Name: "p", Code: intPtr(7), PulseWidth: &pulse, ResetCode: intPtr(0)}, trigger.Now, nil))

	assert.Equal(t, []int{7}, d.Codes())
	assert.Empty(t, d.resets, "reset only follows a plain send")
	missing := rec.OfType(domain.RecordTriggerCapabilityMissing)
	require.Len(t, missing, 1)
	assert.Equal(t, "send_pulse", missing[0].(*trigger.Record).Missing)
}
