package sim_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/trialkit/pkg/audit"
	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(key string, rt *time.Duration) sim.ResponderFunc {
	return func(domain.Observation) (domain.Action, error) {
		return domain.Action{Key: key, RT: rt}, nil
	}
}

func spaceObs(deadline float64) domain.Observation {
	obs := domain.NewObservation("target", []string{"space"}, domain.Seconds(deadline))
	obs.TrialID = "1"
	return obs
}

func newAdapter(opts ...sim.Option) (*sim.Adapter, *audit.Recorder) {
	rec := audit.NewRecorder()
	return sim.NewAdapter(append([]sim.Option{sim.WithSink(rec)}, opts...)...), rec
}

func TestScenarioA_ValidActionAccepted(t *testing.T) {
	a, rec := newAdapter(sim.WithPolicy(domain.PolicyWarn))

	res, err := a.HandleResponse(spaceObs(0.5), fixed("space", domain.Seconds(0.3)))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, res.Validation.Status)
	assert.Equal(t, "space", res.Used.Key)
	require.NotNil(t, res.Used.RT)
	assert.Equal(t, 300*time.Millisecond, *res.Used.RT)
	assert.Len(t, rec.OfType(domain.RecordSimAction), 1)
}

func TestScenarioB_InvalidKeyRejected(t *testing.T) {
	a, rec := newAdapter(sim.WithPolicy(domain.PolicyWarn))

	res, err := a.HandleResponse(spaceObs(0.5), fixed("x", domain.Seconds(0.1)))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, res.Validation.Status)
	assert.Equal(t, domain.ReasonInvalidKey, res.Validation.Reason)
	assert.Empty(t, res.Used.Key)
	assert.Nil(t, res.Used.RT)
	require.NotNil(t, res.Raw)
	assert.Equal(t, "x", res.Raw.Key)

	r := rec.Records[0].(*sim.ActionRecord)
	assert.Nil(t, r.UsedAction.Key)
	require.NotNil(t, r.RawAction)
	assert.Equal(t, "x", *r.RawAction.Key)
}

func TestScenarioC_MissingRTCoerced(t *testing.T) {
	a, _ := newAdapter(sim.WithPolicy(domain.PolicyCoerce), sim.WithDefaultRT(200*time.Millisecond))

	res, err := a.HandleResponse(spaceObs(0.5), fixed("space", nil))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCoerced, res.Validation.Status)
	assert.Equal(t, domain.ReasonMissingRT, res.Validation.Reason)
	require.NotNil(t, res.Used.RT)
	assert.Equal(t, 200*time.Millisecond, *res.Used.RT)
	assert.Equal(t, "MISSING_RT", res.Used.Meta["coerced"])
}

func TestScenarioD_RTClamped(t *testing.T) {
	a, _ := newAdapter(sim.WithPolicy(domain.PolicyCoerce), sim.WithClampRT(true))

	res, err := a.HandleResponse(spaceObs(0.2), fixed("space", domain.Seconds(0.9)))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCoerced, res.Validation.Status)
	assert.Equal(t, domain.ReasonRTClamped, res.Validation.Reason)
	require.NotNil(t, res.Used.RT)
	assert.Equal(t, 200*time.Millisecond, *res.Used.RT)
}

func TestMissingRT_DefaultCappedByDeadline(t *testing.T) {
	a, _ := newAdapter(sim.WithPolicy(domain.PolicyCoerce), sim.WithDefaultRT(time.Second))
	res, err := a.HandleResponse(spaceObs(0.25), fixed("space", nil))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, *res.Used.RT)
}

func TestRTOutOfBounds(t *testing.T) {
	cases := []struct {
		name   string
		policy domain.Policy
		clamp  bool
		rt     float64
		status domain.ValidationStatus
		reason domain.ReasonCode
	}{
		{"WarnTooLate", domain.PolicyWarn, true, 0.9, domain.StatusRejected, domain.ReasonRTOutOfBounds},
		{"CoerceWithoutClamp", domain.PolicyCoerce, false, 0.9, domain.StatusRejected, domain.ReasonRTOutOfBounds},
		{"CoerceNegative", domain.PolicyCoerce, true, -0.1, domain.StatusCoerced, domain.ReasonRTClamped},
		{"WarnNegative", domain.PolicyWarn, false, -0.1, domain.StatusRejected, domain.ReasonRTOutOfBounds},
		{"OnDeadline", domain.PolicyWarn, false, 0.5, domain.StatusOK, domain.ReasonNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, _ := newAdapter(sim.WithPolicy(tc.policy), sim.WithClampRT(tc.clamp))
			res, err := a.HandleResponse(spaceObs(0.5), fixed("space", domain.Seconds(tc.rt)))
			require.NoError(t, err)
			assert.Equal(t, tc.status, res.Validation.Status)
			assert.Equal(t, tc.reason, res.Validation.Reason)
		})
	}
}

func TestStrictPolicyReturnsTypedError(t *testing.T) {
	cases := []struct {
		name      string
		obs       domain.Observation
		responder sim.ResponderFunc
		code      domain.ReasonCode
	}{
		{"InvalidKey", spaceObs(0.5), fixed("x", domain.Seconds(0.1)), domain.ReasonInvalidKey},
		{"MissingRT", spaceObs(0.5), fixed("space", nil), domain.ReasonMissingRT},
		{"OutOfBounds", spaceObs(0.5), fixed("space", domain.Seconds(2)), domain.ReasonRTOutOfBounds},
		{"EmptyKeys", domain.NewObservation("target", nil, domain.Seconds(1)), fixed("space", domain.Seconds(0.1)), domain.ReasonEmptyValidKeys},
		{"ActError", spaceObs(0.5), func(domain.Observation) (domain.Action, error) {
			return domain.Action{}, errors.New("model offline")
		}, domain.ReasonActException},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, rec := newAdapter(sim.WithPolicy(domain.PolicyStrict))
			res, err := a.HandleResponse(tc.obs, tc.responder)

			var rae *domain.ResponderActionError
			require.ErrorAs(t, err, &rae)
			assert.Equal(t, tc.code, rae.Code)
			assert.Equal(t, domain.StatusError, res.Validation.Status)
			assert.False(t, res.Used.Responded())
			assert.Len(t, rec.OfType(domain.RecordSimAction), 1, "strict faults are audited too")
		})
	}
}

func TestActPanicIsRecovered(t *testing.T) {
	a, _ := newAdapter()
	res, err := a.HandleResponse(spaceObs(0.5), sim.ResponderFunc(func(domain.Observation) (domain.Action, error) {
		panic("index out of range")
	}))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, res.Validation.Status)
	assert.Equal(t, domain.ReasonActException, res.Validation.Reason)
	assert.Nil(t, res.Raw)
	assert.Contains(t, res.Validation.Message, "index out of range")
}

func TestWindowClosedRejectsEvenWhenStrict(t *testing.T) {
	a, _ := newAdapter(sim.WithPolicy(domain.PolicyStrict))
	obs := spaceObs(0.5)
	obs.WindowOpen = false
	res, err := a.HandleResponse(obs, fixed("space", domain.Seconds(0.1)))
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonWindowClosed, res.Validation.Reason)
}

func TestNoResponse(t *testing.T) {
	a, _ := newAdapter(sim.WithPolicy(domain.PolicyStrict))
	res, err := a.HandleResponse(spaceObs(0.5), fixed("", domain.Seconds(0.4)))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, res.Validation.Status)
	assert.Equal(t, domain.ReasonNoResponse, res.Validation.Reason)
	assert.Nil(t, res.Used.RT)
	assert.InDelta(t, 0.4, res.Used.Meta["ignored_rt_s"], 1e-9)

	res, err = a.HandleResponse(spaceObs(0.5), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNoResponse, res.Validation.Reason)
}

func TestWindowFallbackWhenNoDeadline(t *testing.T) {
	a, _ := newAdapter()
	obs := domain.NewObservation("target", []string{"f"}, nil)
	obs.Window = domain.Seconds(1)
	res, err := a.HandleResponse(obs, fixed("f", domain.Seconds(1.5)))
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonRTOutOfBounds, res.Validation.Reason)

	unbounded := domain.NewObservation("target", []string{"f"}, nil)
	res, err = a.HandleResponse(unbounded, fixed("f", domain.Seconds(30)))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, res.Validation.Status)
}

func TestObservationWarningInAutomatedModes(t *testing.T) {
	a, rec := newAdapter()
	obs := domain.NewObservation("", nil, nil)
	obs.Mode = domain.ModeSim
	_, err := a.HandleResponse(obs, sim.NullResponder{})
	require.NoError(t, err)

	warnings := rec.OfType(domain.RecordSimObservationWarning)
	require.Len(t, warnings, 1)
	w := warnings[0].(*sim.ObservationWarning)
	assert.Equal(t, []string{"trial_id", "phase", "deadline_s", "valid_keys"}, w.Missing)

	rec.Reset()
	obs.Mode = domain.ModeHuman
	_, err = a.HandleResponse(obs, sim.NullResponder{})
	require.NoError(t, err)
	assert.Empty(t, rec.OfType(domain.RecordSimObservationWarning))
}

func TestAdapterIsIdempotent(t *testing.T) {
	run := func() []string {
		rec := audit.NewRecorder()
		session := domain.SessionInfo{ParticipantID: "p001", SessionID: "sim-p001-seed42", Seed: 42, Mode: domain.ModeSim}
		j := audit.NewJournal(audit.WithSink(rec), audit.WithSession(session))
		a := sim.NewAdapter(sim.WithSink(j), sim.WithSession(session), sim.WithPolicy(domain.PolicyCoerce), sim.WithClampRT(true))
		responder := &sim.ScriptedResponder{Key: "j", RT: 400 * time.Millisecond, Jitter: 300 * time.Millisecond}
		require.NoError(t, responder.StartSession(session, sim.NewRNG(session.Seed)))

		var lines []string
		for i := 0; i < 20; i++ {
			obs := domain.NewObservation("target", []string{"f", "j"}, domain.Seconds(0.5))
			obs.TrialID = "t"
			_, err := a.HandleResponse(obs, responder)
			require.NoError(t, err)
		}
		for _, r := range rec.Records {
			r.Header().TUTC = time.Time{}
			b, err := json.Marshal(r)
			require.NoError(t, err)
			lines = append(lines, string(b))
		}
		return lines
	}

	assert.Equal(t, run(), run())
}

func TestAcceptedActionsRespectObservation(t *testing.T) {
	rng := sim.NewRNG(7)
	keys := []string{"f", "j", "x", ""}
	for _, policy := range []domain.Policy{domain.PolicyWarn, domain.PolicyCoerce} {
		a := sim.NewAdapter(sim.WithPolicy(policy), sim.WithClampRT(true))
		for i := 0; i < 200; i++ {
			deadline := rng.Float64()
			obs := domain.NewObservation("p", []string{"f", "j"}, domain.Seconds(deadline))
			var rt *time.Duration
			if rng.IntN(4) > 0 {
				rt = domain.Seconds(rng.Float64()*2 - 0.5)
			}
			res, err := a.HandleResponse(obs, fixed(keys[rng.IntN(len(keys))], rt))
			require.NoError(t, err)
			if res.Validation.Status != domain.StatusOK && res.Validation.Status != domain.StatusCoerced {
				continue
			}
			if !res.Used.Responded() {
				continue
			}
			assert.True(t, obs.Accepts(res.Used.Key))
			require.NotNil(t, res.Used.RT)
			assert.GreaterOrEqual(t, *res.Used.RT, time.Duration(0))
			assert.LessOrEqual(t, *res.Used.RT, *obs.Deadline)
		}
	}
}

func TestInvalidPolicyFallsBackToWarn(t *testing.T) {
	a := sim.NewAdapter(sim.WithPolicy("lenient"))
	assert.Equal(t, domain.PolicyWarn, a.Policy())
}
