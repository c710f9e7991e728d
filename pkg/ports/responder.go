package ports

import (
	"math/rand/v2"

	"github.com/aretw0/trialkit/pkg/domain"
)

// Responder produces an Action for an Observation. Its output is never trusted:
// it always goes through the responder adapter.
type Responder interface {
	Act(obs domain.Observation) (domain.Action, error)
}

// SessionStarter receives the session identity and the run's seeded generator.
type SessionStarter interface {
	StartSession(session domain.SessionInfo, rng *rand.Rand) error
}

// FeedbackReceiver is notified of the outcome of each capture.
type FeedbackReceiver interface {
	OnFeedback(fb domain.Feedback) error
}

// SessionEnder is called once when the run context is closed.
type SessionEnder interface {
	EndSession() error
}
