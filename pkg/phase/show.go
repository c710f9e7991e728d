package phase

import (
	"time"

	"github.com/aretw0/trialkit/pkg/trigger"
)

// Show presents the stimuli for d, quantized to frames. An unset d uses the
// longest attached sound. With a single frame, onset and offset share a flip.
func (e *Engine) Show(d Duration, opts ...Opt) (*Record, error) {
	s := newSettings(opts)

	var nominal time.Duration
	if d.IsSet() {
		var err error
		if nominal, err = d.resolve(e.rng); err != nil {
			return nil, err
		}
	} else {
		nominal = e.longestSound()
	}
	used, frames, scaled := e.quantize(nominal)

	e.begin("show")
	e.rec.Nominal, e.rec.Used, e.rec.Scaled, e.rec.Frames = nominal, used, scaled, frames
	if scaled {
		e.state.Set("duration_nominal", nominal.Seconds())
		e.state.Set("duration_scaled", used.Seconds())
	}
	e.state.Set("duration", used.Seconds())

	e.drawVisuals()
	if err := e.armOnset(false, s.onsetTrigger); err != nil {
		return nil, err
	}
	if frames == 1 {
		if err := e.armOffset(s.offsetTrigger); err != nil {
			return nil, err
		}
	}
	e.state.Set("flip_time", e.flip().Seconds())
	if err := e.flipErr(); err != nil {
		return nil, err
	}

	for i := 0; i < frames-1; i++ {
		e.drawVisuals()
		if i == frames-2 {
			if err := e.armOffset(s.offsetTrigger); err != nil {
				return nil, err
			}
		}
		e.flip()
		if err := e.flipErr(); err != nil {
			return nil, err
		}
	}
	e.state.Set("offset_flip_time", e.lastFlip.Seconds())
	return e.finish(), nil
}

func (e *Engine) armOffset(code *int) error {
	e.display.OnFlip(func(t time.Duration) { e.stampOffset(t, code) })
	return e.emit(code, trigger.Flip, "offset", nil)
}
