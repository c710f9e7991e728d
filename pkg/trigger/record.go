package trigger

import (
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
)

// When selects the emission moment.
type When string

const (
	Now  When = "now"
	Flip When = "flip"
)

// Record is the audit shape shared by every trigger record type.
// Times are seconds: t_planned and t_sent on the wall clock, t_flip on the display clock.
type Record struct {
	domain.RecordHeader
	EmitID       uint64         `json:"emit_id,omitempty"`
	When         When           `json:"when,omitempty"`
	OnFlip       bool           `json:"on_flip"`
	TPlanned     float64        `json:"t_planned,omitempty"`
	TSent        *float64       `json:"t_sent,omitempty"`
	TFlip        *float64       `json:"t_flip,omitempty"`
	Driver       string         `json:"driver"`
	EventName    string         `json:"event_name,omitempty"`
	Code         *int           `json:"code"`
	PayloadLen   *int           `json:"payload_len,omitempty"`
	PulseWidthMS *float64       `json:"pulse_width_ms,omitempty"`
	ResetCode    *int           `json:"reset_code,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	Error        string         `json:"error,omitempty"`
	Missing      string         `json:"missing,omitempty"`
	Reason       string         `json:"reason,omitempty"`
}

func (r *Runtime) newRecord(typ domain.RecordType, ev domain.TriggerEvent) *Record {
	rec := &Record{
		RecordHeader: domain.RecordHeader{Type: typ},
		Driver:       r.name,
		EventName:    ev.Name,
		Code:         ev.Code,
		ResetCode:    ev.ResetCode,
		Meta:         ev.Meta,
	}
	if ev.Payload != nil {
		n := len(ev.Payload)
		rec.PayloadLen = &n
	}
	if ev.PulseWidth != nil {
		ms := float64(*ev.PulseWidth) / float64(time.Millisecond)
		rec.PulseWidthMS = &ms
	}
	return rec
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
