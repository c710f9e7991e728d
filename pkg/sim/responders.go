package sim

import (
	"math/rand/v2"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
)

// NullResponder never responds, so every window times out.
type NullResponder struct{}

func (NullResponder) Act(domain.Observation) (domain.Action, error) {
	return domain.NoResponse(map[string]any{"source": "null"}), nil
}

// ResponderFunc adapts a plain function to ports.Responder.
type ResponderFunc func(obs domain.Observation) (domain.Action, error)

func (f ResponderFunc) Act(obs domain.Observation) (domain.Action, error) {
	return f(obs)
}

// ScriptedResponder presses Key when it is valid, else the first valid key,
// after RT plus a uniform jitter in [-Jitter, +Jitter] drawn from the session RNG.
// The reaction time never undercuts a "min_wait_s" hint in the observation extras.
type ScriptedResponder struct {
	Key    string
	RT     time.Duration
	Jitter time.Duration

	rng *rand.Rand
}

// NewScripted creates a scripted responder.
func NewScripted(key string, rt time.Duration) *ScriptedResponder {
	return &ScriptedResponder{Key: key, RT: rt}
}

// StartSession keeps the session RNG for jitter.
func (s *ScriptedResponder) StartSession(_ domain.SessionInfo, rng *rand.Rand) error {
	s.rng = rng
	return nil
}

func (s *ScriptedResponder) Act(obs domain.Observation) (domain.Action, error) {
	key := ""
	switch {
	case s.Key != "" && obs.Accepts(s.Key):
		key = s.Key
	case len(obs.ValidKeys) > 0:
		key = obs.ValidKeys[0]
	}

	rt := s.RT
	if s.Jitter > 0 && s.rng != nil {
		rt += time.Duration((s.rng.Float64()*2 - 1) * float64(s.Jitter))
		rt = max(0, rt)
	}
	if minWait, ok := MinWait(obs); ok {
		rt = max(rt, minWait)
	}
	return domain.Action{Key: key, RT: &rt, Meta: map[string]any{"source": "scripted"}}, nil
}

// MinWait reads the "min_wait_s" hint from the observation extras.
func MinWait(obs domain.Observation) (time.Duration, bool) {
	switch v := obs.Extras["min_wait_s"].(type) {
	case float64:
		return time.Duration(v * float64(time.Second)), true
	case int:
		return time.Duration(v) * time.Second, true
	case time.Duration:
		return v, true
	}
	return 0, false
}
