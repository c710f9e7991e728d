package domain

import "time"

// RecordType defines the category of an audit record.
type RecordType string

const (
	RecordTriggerPlanned           RecordType = "trigger_planned"
	RecordTriggerExecuted          RecordType = "trigger_executed"
	RecordTriggerSkipped           RecordType = "trigger_skipped"
	RecordTriggerCapabilityMissing RecordType = "trigger_capability_missing"
	RecordSimAction                RecordType = "sim_action"
	RecordSimObservationWarning    RecordType = "sim_observation_warning"
	RecordPhase                    RecordType = "phase"
)

// RecordHeader contains common fields for all audit records.
// Seq and TUTC are stamped by the journal, not by the producer.
type RecordHeader struct {
	Type    RecordType   `json:"type"`
	Seq     uint64       `json:"seq"`
	TUTC    time.Time    `json:"t_utc"`
	Session *SessionInfo `json:"session,omitempty"`
}

// Header returns the header itself so that any struct embedding it satisfies Record.
func (h *RecordHeader) Header() *RecordHeader { return h }

// Record is any audit record carrying a RecordHeader.
type Record interface {
	Header() *RecordHeader
}
