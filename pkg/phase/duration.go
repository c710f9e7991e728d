package phase

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
)

// Duration is a nominal phase length: fixed, a uniform range, or unset.
// The zero value is unset.
type Duration struct {
	min, max time.Duration
	set      bool
}

// Fixed is a constant duration.
func Fixed(d time.Duration) Duration {
	return Duration{min: d, max: d, set: true}
}

// Range draws uniformly from [min, max] each time the phase runs.
func Range(min, max time.Duration) Duration {
	return Duration{min: min, max: max, set: true}
}

// Auto leaves the duration unset. Show then uses the longest attached sound.
func Auto() Duration {
	return Duration{}
}

// IsSet reports whether a duration was given.
func (d Duration) IsSet() bool {
	return d.set
}

func (d Duration) resolve(rng *rand.Rand) (time.Duration, error) {
	if !d.set {
		return 0, fmt.Errorf("duration is required: %w", domain.ErrInvalidDuration)
	}
	if d.min < 0 || d.max < d.min {
		return 0, fmt.Errorf("duration [%s, %s]: %w", d.min, d.max, domain.ErrInvalidDuration)
	}
	if d.min == d.max {
		return d.min, nil
	}
	return d.min + time.Duration(rng.Float64()*float64(d.max-d.min)), nil
}

// Frames converts d into a frame count: round(d/period), at least one.
func Frames(d, period time.Duration) int {
	n := int(math.Round(float64(d) / float64(period)))
	return max(1, n)
}

// quantize returns the used duration and frame count for nominal. In qa mode
// with scaling enabled the duration is stretched by the timing scale, never
// below one period, and the frame count never drops below the minimum floor.
func (e *Engine) quantize(nominal time.Duration) (time.Duration, int, bool) {
	period := e.display.FramePeriod()
	frames := Frames(nominal, period)
	if e.ctx == nil || e.ctx.Mode != domain.ModeQA || !e.ctx.Config.EnableScaling {
		return nominal, frames, false
	}
	scale := e.ctx.Config.TimingScale
	if scale <= 0 {
		scale = 1
	}
	scaled := max(period, time.Duration(float64(nominal)*scale))
	minFrames := max(1, e.ctx.Config.MinFrames)
	frames = max(minFrames, int(math.Round(float64(scaled)/float64(period))))
	return time.Duration(frames) * period, frames, true
}
