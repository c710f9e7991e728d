package phase

import (
	"errors"
	"slices"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/trigger"
)

// CaptureResponse presents the stimuli and waits up to d for one of keys.
//
// The first valid key ends the window unless TerminateOnResponse(false) was
// given. With DynamicHighlight a human subject may change their answer: every
// new key moves the highlight, re-sends the response trigger and overwrites the
// response fields, and the window runs to its end. An injected response is
// registered once.
func (e *Engine) CaptureResponse(keys []string, d Duration, opts ...Opt) (*Record, error) {
	s := newSettings(opts)
	nominal, err := d.resolve(e.rng)
	if err != nil {
		return nil, err
	}
	used, frames, scaled := e.quantize(nominal)

	e.begin("capture_response")
	e.rec.Nominal, e.rec.Used, e.rec.Scaled, e.rec.Frames = nominal, used, scaled, frames
	if scaled {
		e.state.Set("duration_nominal", nominal.Seconds())
		e.state.Set("duration_scaled", used.Seconds())
	}
	e.state.Set("duration", used.Seconds())

	e.drawVisuals()
	if err := e.armOnset(true, s.onsetTrigger); err != nil {
		return nil, err
	}
	if frames == 1 {
		e.display.OnFlip(e.stampClose)
	}
	e.state.Set("flip_time", e.flip().Seconds())
	if err := e.flipErr(); err != nil {
		return nil, err
	}

	correct := s.correctKeys
	if correct == nil {
		correct = keys
	}

	injected := e.automated()
	var simKey string
	var simRT *time.Duration
	if injected {
		obs := e.observation(keys, used)
		obs.Window = &used
		if simKey, simRT, err = e.inject(obs); err != nil {
			return nil, err
		}
	}

	responded := false
	chosen := ""
	respond := func(key string, rt time.Duration) error {
		chosen = key
		responded = true
		hit := slices.Contains(correct, key)
		e.rec.Responded, e.rec.Key, e.rec.Hit = true, key, hit
		rtCopy := rt
		e.rec.RT = &rtCopy
		responseGlobal := epochSeconds(e.onsetWall.Add(rt))
		e.state.Set("hit", hit)
		e.state.Set("correct_keys", correct)
		e.state.Set("response", key)
		e.state.Set("key_press", true)
		e.state.Set("rt", rt.Seconds())
		e.state.Set("response_time", rt.Seconds())
		e.state.Set("response_time_global", responseGlobal)
		code := s.responseCode(key)
		if code != nil {
			e.state.Set("response_trigger", *code)
		}
		return e.emit(code, trigger.Now, "response", map[string]any{"key": key})
	}

	for i := 0; i < frames-1; i++ {
		if !(responded && s.terminate) {
			e.drawVisuals()
		}
		if responded {
			if h := s.highlightFor(chosen); h != nil {
				h.Draw()
			}
		}
		if i == frames-2 {
			e.display.OnFlip(e.stampClose)
		}
		e.flip()
		if err := e.flipErr(); err != nil {
			return nil, err
		}

		key, rt, ok := "", time.Duration(0), false
		if injected {
			if !responded && simKey != "" && simRT != nil && e.elapsed() >= *simRT {
				key, rt, ok = simKey, *simRT, true
			}
		} else if e.input != nil {
			presses := e.input.GetKeys(keys, false)
			if len(presses) > 0 && (!responded || s.dynamicHighlight) {
				key, rt, ok = presses[0].Name, presses[0].RT, true
			}
		}
		if !ok {
			continue
		}
		if err := respond(key, rt); err != nil {
			return nil, err
		}
		if s.terminate && !s.dynamicHighlight {
			e.setClose(e.onset + rt)
			break
		}
	}
	// An injected rt past the last flip but inside the advertised deadline
	// still counts; this also covers single-frame windows.
	if injected && !responded && simKey != "" && simRT != nil && *simRT <= used {
		if err := respond(simKey, *simRT); err != nil {
			return nil, err
		}
		if s.terminate {
			e.setClose(e.onset + *simRT)
		}
	}

	outcome := "timeout"
	if !responded {
		e.rec.TimedOut = true
		e.state.Set("hit", false)
		e.state.Set("correct_keys", correct)
		e.state.Set("response", nil)
		e.state.Set("key_press", false)
		e.state.Set("rt", nil)
		e.state.Set("response_time", nil)
		e.state.Set("response_time_global", nil)
		if s.timeoutTrigger != nil {
			e.state.Set("timeout_trigger", *s.timeoutTrigger)
		}
		if err := e.emit(s.timeoutTrigger, trigger.Now, "timeout", nil); err != nil {
			return nil, err
		}
	} else if e.rec.Hit {
		outcome = "hit"
	} else {
		outcome = "error"
	}

	meta := map[string]any{"response": nil, "rt_s": nil}
	if e.rec.Responded {
		meta["response"] = e.rec.Key
		meta["rt_s"] = e.rec.RT.Seconds()
	}
	if e.trial.ConditionID != "" {
		meta["condition_id"] = e.trial.ConditionID
	}
	e.feedback(outcome, meta)

	return e.finish(), nil
}

// IsResponderFault reports whether err is a strict-policy responder fault.
func IsResponderFault(err error) bool {
	var rae *domain.ResponderActionError
	return errors.As(err, &rae)
}
