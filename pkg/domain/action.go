package domain

import "time"

// Observation is the snapshot a responder sees for one response window.
// A fresh Observation is built for every capture.
type Observation struct {
	TrialID     string
	BlockID     string
	Phase       string
	ValidKeys   []string
	Deadline    *time.Duration
	WindowOpen  bool
	Window      *time.Duration
	PhaseOnset  *time.Duration
	ConditionID string
	StimID      string
	TaskFactors map[string]any
	Mode        Mode

	// Extras carries task-specific hints such as "min_wait_s".
	Extras map[string]any
}

// NewObservation creates an observation with an open response window.
func NewObservation(phase string, validKeys []string, deadline *time.Duration) Observation {
	return Observation{
		Phase:      phase,
		ValidKeys:  append([]string(nil), validKeys...),
		Deadline:   deadline,
		WindowOpen: true,
	}
}

// Limit returns the response deadline, falling back to the window length.
// ok is false when the observation is unbounded.
func (o Observation) Limit() (time.Duration, bool) {
	if o.Deadline != nil {
		return *o.Deadline, true
	}
	if o.Window != nil {
		return *o.Window, true
	}
	return 0, false
}

// Accepts reports whether key is one of the valid keys.
func (o Observation) Accepts(key string) bool {
	for _, k := range o.ValidKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Action is a responder's answer. An empty Key means "no response".
type Action struct {
	Key  string
	RT   *time.Duration
	Meta map[string]any
}

// NoResponse is the well-formed "did not answer" action.
func NoResponse(meta map[string]any) Action {
	return Action{Meta: meta}
}

// Responded reports whether the action carries a key.
func (a Action) Responded() bool {
	return a.Key != ""
}

// Feedback is delivered to responders after a capture so adaptive plugins can learn.
type Feedback struct {
	TrialID string
	Phase   string
	Outcome string // hit | error | timeout | continue
	Reward  *float64
	Meta    map[string]any
}

// Seconds is a helper to build optional durations from float seconds.
func Seconds(s float64) *time.Duration {
	d := time.Duration(s * float64(time.Second))
	return &d
}
