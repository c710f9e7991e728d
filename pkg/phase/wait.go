package phase

import (
	"fmt"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/ports"
)

// DefaultMaxWait bounds an automated WaitAndContinue when the context sets no ceiling.
const DefaultMaxWait = 10 * time.Second

// WaitAndContinue shows the stimuli until one of keys is pressed.
//
// Keys pressed before the minimum wait are ignored; the minimum defaults to
// the longest attached sound. In automated modes the responder answers once
// and the wait fails with ErrMaxWaitExceeded if it runs past the ceiling.
func (e *Engine) WaitAndContinue(keys []string, opts ...Opt) (*Record, error) {
	s := newSettings(opts)
	minWait := e.longestSound()
	if s.minWait != nil {
		minWait = *s.minWait
	}
	if minWait < 0 {
		return nil, fmt.Errorf("min wait %s: %w", minWait, domain.ErrInvalidDuration)
	}

	injected := e.automated()
	if !injected && e.input == nil {
		return nil, fmt.Errorf("phase %s: %w", e.label, ErrNoInput)
	}

	e.begin("wait_and_continue")
	e.state.Set("wait_keys", keys)

	e.drawVisuals()
	if err := e.armOnset(true, nil); err != nil {
		return nil, err
	}
	e.state.Set("flip_time", e.flip().Seconds())

	var key string
	var rt time.Duration
	if injected {
		maxWait := e.ctx.Config.MaxWait
		if maxWait <= 0 {
			maxWait = DefaultMaxWait
		}
		obs := e.observation(keys, maxWait)
		obs.Extras = map[string]any{"min_wait_s": minWait.Seconds()}
		simKey, simRT, err := e.inject(obs)
		if err != nil {
			return nil, err
		}
		target := minWait
		if simRT != nil {
			target = max(*simRT, minWait)
		}
		for {
			if simKey != "" && e.elapsed() >= target {
				key, rt = simKey, target
				break
			}
			if e.elapsed() > maxWait {
				return nil, fmt.Errorf("phase %s after %s: %w", e.label, maxWait, domain.ErrMaxWaitExceeded)
			}
			e.drawVisuals()
			e.flip()
		}
	} else {
	poll:
		for {
			for _, p := range e.input.GetKeys(keys, false) {
				if p.RT >= minWait {
					key, rt = p.Name, p.RT
					break poll
				}
			}
			e.drawVisuals()
			e.flip()
		}
	}

	e.rec.Responded, e.rec.Key = true, key
	e.rec.RT = &rt
	e.rec.Used = e.elapsed()
	e.rec.Frames = int(e.elapsed()/e.display.FramePeriod()) + 1
	e.state.Set("response", key)
	e.state.Set("response_time", rt.Seconds())
	e.state.Set("response_time_global", epochSeconds(e.onsetWall.Add(rt)))
	e.setClose(e.onset + rt)

	e.feedback("continue", map[string]any{"response": key, "rt_s": rt.Seconds()})
	rec := e.finish()

	if s.closeDisplay {
		if c, ok := e.display.(ports.Closer); ok {
			if err := c.Close(); err != nil {
				return rec, fmt.Errorf("close display: %w", err)
			}
		}
	}
	return rec, nil
}
