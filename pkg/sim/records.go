package sim

import (
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
)

// ObservationView is the audit shape of an Observation. Durations are seconds.
type ObservationView struct {
	TrialID     string         `json:"trial_id,omitempty"`
	BlockID     string         `json:"block_id,omitempty"`
	Phase       string         `json:"phase"`
	ValidKeys   []string       `json:"valid_keys"`
	DeadlineS   *float64       `json:"deadline_s"`
	WindowOpen  bool           `json:"response_window_open"`
	WindowS     *float64       `json:"response_window_s,omitempty"`
	PhaseOnsetS *float64       `json:"t_phase_onset,omitempty"`
	ConditionID string         `json:"condition_id,omitempty"`
	StimID      string         `json:"stim_id,omitempty"`
	TaskFactors map[string]any `json:"task_factors,omitempty"`
	Mode        domain.Mode    `json:"mode,omitempty"`
	Extras      map[string]any `json:"extras,omitempty"`
}

// ActionView is the audit shape of an Action. A null key means no response.
type ActionView struct {
	Key  *string        `json:"key"`
	RTS  *float64       `json:"rt_s"`
	Meta map[string]any `json:"meta,omitempty"`
}

// ActionRecord is written once per Adapter call.
type ActionRecord struct {
	domain.RecordHeader
	Obs        ObservationView         `json:"obs"`
	RawAction  *ActionView             `json:"raw_action"`
	UsedAction ActionView              `json:"used_action"`
	Validation domain.ValidationResult `json:"validation"`
}

// ObservationWarning flags automated observations missing recommended fields.
type ObservationWarning struct {
	domain.RecordHeader
	Obs     ObservationView `json:"obs"`
	Missing []string        `json:"missing"`
	Reason  string          `json:"reason"`
}

func seconds(d *time.Duration) *float64 {
	if d == nil {
		return nil
	}
	s := d.Seconds()
	return &s
}

// ViewObservation converts an Observation to its audit shape.
func ViewObservation(obs domain.Observation) ObservationView {
	return ObservationView{
		TrialID:     obs.TrialID,
		BlockID:     obs.BlockID,
		Phase:       obs.Phase,
		ValidKeys:   append([]string{}, obs.ValidKeys...),
		DeadlineS:   seconds(obs.Deadline),
		WindowOpen:  obs.WindowOpen,
		WindowS:     seconds(obs.Window),
		PhaseOnsetS: seconds(obs.PhaseOnset),
		ConditionID: obs.ConditionID,
		StimID:      obs.StimID,
		TaskFactors: obs.TaskFactors,
		Mode:        obs.Mode,
		Extras:      obs.Extras,
	}
}

// ViewAction converts an Action to its audit shape.
func ViewAction(a domain.Action) ActionView {
	v := ActionView{RTS: seconds(a.RT), Meta: a.Meta}
	if a.Key != "" {
		k := a.Key
		v.Key = &k
	}
	return v
}

func duration(s *float64) *time.Duration {
	if s == nil {
		return nil
	}
	d := time.Duration(*s * float64(time.Second))
	return &d
}

// Observation converts the view back, for responders reached over the wire.
func (v ObservationView) Observation() domain.Observation {
	return domain.Observation{
		TrialID:     v.TrialID,
		BlockID:     v.BlockID,
		Phase:       v.Phase,
		ValidKeys:   append([]string(nil), v.ValidKeys...),
		Deadline:    duration(v.DeadlineS),
		WindowOpen:  v.WindowOpen,
		Window:      duration(v.WindowS),
		PhaseOnset:  duration(v.PhaseOnsetS),
		ConditionID: v.ConditionID,
		StimID:      v.StimID,
		TaskFactors: v.TaskFactors,
		Mode:        v.Mode,
		Extras:      v.Extras,
	}
}

// Action converts the view back. A null key means no response.
func (v ActionView) Action() domain.Action {
	a := domain.Action{RT: duration(v.RTS), Meta: v.Meta}
	if v.Key != nil {
		a.Key = *v.Key
	}
	return a
}
