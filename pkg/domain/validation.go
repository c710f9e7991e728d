package domain

import "strings"

// Policy is the run-scoped strictness of the responder adapter.
type Policy string

const (
	PolicyStrict Policy = "strict" // Faults are returned as *ResponderActionError
	PolicyWarn   Policy = "warn"   // Faults become logged rejections
	PolicyCoerce Policy = "coerce" // Repairable faults are fixed and logged
)

// ParsePolicy normalizes a policy string. Unknown values fall back to warn.
func ParsePolicy(s string) Policy {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyStrict:
		return PolicyStrict
	case PolicyCoerce:
		return PolicyCoerce
	default:
		return PolicyWarn
	}
}

// ValidationStatus is the outcome of validating one responder action.
type ValidationStatus string

const (
	StatusOK       ValidationStatus = "ok"
	StatusCoerced  ValidationStatus = "coerced"
	StatusRejected ValidationStatus = "rejected"
	StatusError    ValidationStatus = "error"
)

// ReasonCode explains a non-trivial verdict.
type ReasonCode string

const (
	ReasonNone           ReasonCode = ""
	ReasonActException   ReasonCode = "ACT_EXCEPTION"
	ReasonWindowClosed   ReasonCode = "WINDOW_CLOSED"
	ReasonEmptyValidKeys ReasonCode = "EMPTY_VALID_KEYS"
	ReasonInvalidKey     ReasonCode = "INVALID_KEY"
	ReasonMissingRT      ReasonCode = "MISSING_RT"
	ReasonRTOutOfBounds  ReasonCode = "RT_OUT_OF_BOUNDS"
	ReasonRTClamped      ReasonCode = "RT_CLAMPED"
	ReasonNoResponse     ReasonCode = "NO_RESPONSE"
	ReasonMissingFields  ReasonCode = "MISSING_OBS_FIELDS"
)

// ValidationResult is the adapter verdict for one action.
type ValidationResult struct {
	Status  ValidationStatus `json:"status"`
	Reason  ReasonCode       `json:"reason,omitempty"`
	Message string           `json:"message,omitempty"`
}

// HandledResponse pairs what the responder said with what the engine may use.
// Used is the only representation the phase engine acts on.
type HandledResponse struct {
	Raw        *Action
	Used       Action
	Validation ValidationResult
}
