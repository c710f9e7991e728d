package domain

import "strings"

// Mode selects who produces responses during a run.
type Mode string

const (
	ModeHuman Mode = "human" // Real input device
	ModeQA    Mode = "qa"    // Automated smoke/QA run, timings may be scaled
	ModeSim   Mode = "sim"   // Simulated subject
)

// ParseMode normalizes a mode string. Unknown values fall back to human.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeQA:
		return ModeQA
	case ModeSim:
		return ModeSim
	default:
		return ModeHuman
	}
}

// Automated reports whether responses are injected instead of read from a device.
func (m Mode) Automated() bool {
	return m == ModeQA || m == ModeSim
}

// SessionInfo is the run-scoped identity attached to every audit record.
type SessionInfo struct {
	ParticipantID string `json:"participant_id"`
	SessionID     string `json:"session_id"`
	Seed          int64  `json:"seed"`
	Mode          Mode   `json:"mode"`
	TaskName      string `json:"task_name"`
	TaskVersion   string `json:"task_version,omitempty"`
}
