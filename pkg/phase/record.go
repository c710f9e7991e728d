package phase

import (
	"encoding/json"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
)

// Record is the time-stamped result of one phase verb.
// Onset and Close are display-clock flip times; the *Wall fields are wall-clock.
type Record struct {
	domain.RecordHeader
	Label      string
	Verb       string
	Onset      time.Duration
	Close      time.Duration
	OnsetWall  time.Time
	CloseWall  time.Time
	Nominal    time.Duration
	Used       time.Duration
	Scaled     bool
	Frames     int
	Responded  bool
	Key        string
	RT         *time.Duration
	Hit        bool
	TimedOut   bool
	Validation *domain.ValidationResult
	State      map[string]any
}

// Duration is the presented length, close minus onset.
func (r *Record) Duration() time.Duration {
	return r.Close - r.Onset
}

// MarshalJSON writes durations as seconds.
func (r *Record) MarshalJSON() ([]byte, error) {
	type view struct {
		domain.RecordHeader
		Label      string                   `json:"label"`
		Verb       string                   `json:"verb"`
		OnsetS     float64                  `json:"onset_s"`
		CloseS     float64                  `json:"close_s"`
		OnsetUTC   time.Time                `json:"onset_utc"`
		CloseUTC   time.Time                `json:"close_utc"`
		NominalS   float64                  `json:"duration_nominal_s"`
		UsedS      float64                  `json:"duration_s"`
		Scaled     bool                     `json:"scaled,omitempty"`
		Frames     int                      `json:"frames"`
		Responded  bool                     `json:"responded"`
		Key        string                   `json:"key,omitempty"`
		RTS        *float64                 `json:"rt_s,omitempty"`
		Hit        bool                     `json:"hit,omitempty"`
		TimedOut   bool                     `json:"timed_out,omitempty"`
		Validation *domain.ValidationResult `json:"validation,omitempty"`
		State      map[string]any           `json:"state,omitempty"`
	}
	v := view{
		RecordHeader: r.RecordHeader,
		Label:        r.Label,
		Verb:         r.Verb,
		OnsetS:       r.Onset.Seconds(),
		CloseS:       r.Close.Seconds(),
		OnsetUTC:     r.OnsetWall.UTC(),
		CloseUTC:     r.CloseWall.UTC(),
		NominalS:     r.Nominal.Seconds(),
		UsedS:        r.Used.Seconds(),
		Scaled:       r.Scaled,
		Frames:       r.Frames,
		Responded:    r.Responded,
		Key:          r.Key,
		Hit:          r.Hit,
		TimedOut:     r.TimedOut,
		Validation:   r.Validation,
		State:        r.State,
	}
	if r.RT != nil {
		s := r.RT.Seconds()
		v.RTS = &s
	}
	return json.Marshal(v)
}
