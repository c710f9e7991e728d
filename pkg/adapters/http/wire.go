package http

import (
	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/sim"
)

// RequestIDHeader carries the client-generated id of every call.
const RequestIDHeader = "X-Request-ID"

// ActRequest is the body of POST /act.
type ActRequest struct {
	SessionID string              `json:"session_id,omitempty"`
	Obs       sim.ObservationView `json:"obs"`
}

// StartRequest is the body of POST /session/start.
type StartRequest struct {
	Session domain.SessionInfo `json:"session"`
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	TrialID   string         `json:"trial_id,omitempty"`
	Phase     string         `json:"phase"`
	Outcome   string         `json:"outcome"`
	Reward    *float64       `json:"reward,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func feedbackFromDomain(sessionID string, fb domain.Feedback) FeedbackRequest {
	return FeedbackRequest{
		SessionID: sessionID,
		TrialID:   fb.TrialID,
		Phase:     fb.Phase,
		Outcome:   fb.Outcome,
		Reward:    fb.Reward,
		Meta:      fb.Meta,
	}
}

func (f FeedbackRequest) toDomain() domain.Feedback {
	return domain.Feedback{
		TrialID: f.TrialID,
		Phase:   f.Phase,
		Outcome: f.Outcome,
		Reward:  f.Reward,
		Meta:    f.Meta,
	}
}
