package phase

import (
	"fmt"
	"slices"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
)

// ResponseHook runs when one of its keys is pressed.
type ResponseHook func(e *Engine, key string, rt time.Duration)

// Hook runs at a lifecycle point of Run.
type Hook func(e *Engine)

type responseHook struct {
	keys []string
	fn   ResponseHook
}

type timeoutHook struct {
	after time.Duration
	fn    Hook
}

type hooks struct {
	start    []Hook
	response []responseHook
	timeout  []timeoutHook
	end      []Hook
}

// OnStart registers a hook run before the onset flip.
func (e *Engine) OnStart(fn Hook) *Engine {
	e.hooks.start = append(e.hooks.start, fn)
	return e
}

// OnResponse registers a hook for keys.
func (e *Engine) OnResponse(keys []string, fn ResponseHook) *Engine {
	e.hooks.response = append(e.hooks.response, responseHook{keys: keys, fn: fn})
	return e
}

// OnTimeout registers a hook fired once d has elapsed without a response.
func (e *Engine) OnTimeout(d time.Duration, fn Hook) *Engine {
	e.hooks.timeout = append(e.hooks.timeout, timeoutHook{after: d, fn: fn})
	return e
}

// OnEnd registers a hook run after the window closes.
func (e *Engine) OnEnd(fn Hook) *Engine {
	e.hooks.end = append(e.hooks.end, fn)
	return e
}

// DefaultRunWindow is the Run window when neither MaxDuration nor a timeout hook sets one.
const DefaultRunWindow = 5 * time.Second

// Run drives the hook lifecycle. The window is MaxDuration, else the longest
// timeout hook, else DefaultRunWindow; a fixed window without either is an error.
// Timeouts are compared in frames so that a timeout equal to the window fires
// after the last frame.
func (e *Engine) Run(opts ...Opt) (*Record, error) {
	s := newSettings(opts)
	if s.postDisplay != DisplayStimuli && s.postDisplay != DisplayBlank {
		return nil, fmt.Errorf("%q: %w", s.postDisplay, ErrInvalidDisplayMode)
	}

	var window time.Duration
	switch {
	case s.maxDuration != nil:
		window = *s.maxDuration
	case len(e.hooks.timeout) > 0:
		for _, t := range e.hooks.timeout {
			window = max(window, t.after)
		}
	case s.fixedWindow:
		return nil, fmt.Errorf("phase %s: %w", e.label, domain.ErrNoWindow)
	default:
		window = DefaultRunWindow
	}
	if window <= 0 {
		return nil, fmt.Errorf("window %s: %w", window, domain.ErrInvalidDuration)
	}
	period := e.display.FramePeriod()
	frames := Frames(window, period)

	e.begin("run")
	e.rec.Nominal, e.rec.Used, e.rec.Frames = window, window, frames
	e.state.Set("global_time", epochSeconds(e.now()))

	for _, h := range e.hooks.start {
		h(e)
	}

	e.drawVisuals()
	if err := e.armOnset(true, nil); err != nil {
		return nil, err
	}
	e.state.Set("flip_time", e.flip().Seconds())

	var allKeys []string
	for _, h := range e.hooks.response {
		for _, k := range h.keys {
			if !slices.Contains(allKeys, k) {
				allKeys = append(allKeys, k)
			}
		}
	}

	injected := e.automated() && len(allKeys) > 0
	var simKey string
	var simRT *time.Duration
	if injected {
		var err error
		if simKey, simRT, err = e.inject(e.observation(allKeys, window)); err != nil {
			return nil, err
		}
	}

	endEarly := s.terminate && !s.fixedWindow
	responded := false

	fireResponse := func(key string, rt time.Duration) bool {
		for _, h := range e.hooks.response {
			if !slices.Contains(h.keys, key) {
				continue
			}
			rtCopy := rt
			e.rec.Responded, e.rec.Key, e.rec.RT = true, key, &rtCopy
			h.fn(e, key, rt)
			if endEarly {
				e.setClose(e.onset + rt)
			}
			return true
		}
		return false
	}

	fireTimeout := func(elapsedFrames int) bool {
		for _, t := range e.hooks.timeout {
			if elapsedFrames < Frames(t.after, period) {
				continue
			}
			elapsed := e.elapsed()
			e.rec.TimedOut = true
			e.state.Set("timeout_triggered", true)
			e.state.Set("duration", elapsed.Seconds())
			e.state.Set("timeout_time", elapsed.Seconds())
			e.state.Set("timeout_time_global", epochSeconds(e.onsetWall.Add(elapsed)))
			t.fn(e)
			if endEarly {
				e.setClose(e.lastFlip)
			}
			return true
		}
		return false
	}

	for i := 0; i < frames-1; i++ {
		if responded && endEarly {
			break
		}
		if !responded || !s.fixedWindow || s.postDisplay == DisplayStimuli {
			e.drawVisuals()
		}
		if i == frames-2 {
			e.display.OnFlip(e.stampClose)
		}
		e.flip()
		if err := e.flipErr(); err != nil {
			return nil, err
		}

		if injected {
			if !responded && simKey != "" && simRT != nil && e.elapsed() >= *simRT {
				responded = fireResponse(simKey, *simRT)
			}
		} else if e.input != nil && len(allKeys) > 0 {
			presses := e.input.GetKeys(allKeys, false)
			for _, p := range presses {
				if responded {
					break
				}
				responded = fireResponse(p.Name, p.RT)
			}
		}

		if !responded {
			responded = fireTimeout(i + 1)
		}
	}
	if injected && !responded && simKey != "" && simRT != nil && *simRT <= window {
		responded = fireResponse(simKey, *simRT)
	}
	if !responded {
		fireTimeout(frames)
	}

	for _, h := range e.hooks.end {
		h(e)
	}
	return e.finish(), nil
}
