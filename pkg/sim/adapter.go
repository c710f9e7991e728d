package sim

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/ports"
)

// DefaultRT is the reaction time filled in by the coerce policy.
const DefaultRT = 200 * time.Millisecond

// Adapter is the policy gate between responders and the phase engine.
// It is a single-owner object reused sequentially across phases.
type Adapter struct {
	policy    domain.Policy
	defaultRT time.Duration
	clampRT   bool
	sink      ports.AuditSink
	session   *domain.SessionInfo
	logger    *slog.Logger
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithPolicy sets the policy. Unknown policies fall back to warn.
func WithPolicy(p domain.Policy) Option {
	return func(a *Adapter) {
		a.policy = domain.ParsePolicy(string(p))
	}
}

// WithDefaultRT sets the reaction time used to fill a missing one under coerce.
func WithDefaultRT(d time.Duration) Option {
	return func(a *Adapter) {
		a.defaultRT = d
	}
}

// WithClampRT lets coerce clamp out-of-bounds reaction times into the window.
func WithClampRT(clamp bool) Option {
	return func(a *Adapter) {
		a.clampRT = clamp
	}
}

// WithSink sets the audit sink.
func WithSink(sink ports.AuditSink) Option {
	return func(a *Adapter) {
		a.sink = sink
	}
}

// WithSession tags records with the session.
func WithSession(session domain.SessionInfo) Option {
	return func(a *Adapter) {
		s := session
		a.session = &s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// NewAdapter creates an Adapter with the warn policy and a 200ms default RT.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		policy:    domain.PolicyWarn,
		defaultRT: DefaultRT,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Policy returns the active policy.
func (a *Adapter) Policy() domain.Policy {
	return a.policy
}

// HandleResponse asks the responder for an action and validates it.
// Under the strict policy faults are returned as *domain.ResponderActionError;
// otherwise they become rejections with a no-response used action.
func (a *Adapter) HandleResponse(obs domain.Observation, responder ports.Responder) (domain.HandledResponse, error) {
	a.warnMissingFields(obs)

	if responder == nil {
		responder = NullResponder{}
	}
	action, err := act(responder, obs)
	if err != nil {
		msg := fmt.Sprintf("responder act failed: %v", err)
		if a.policy == domain.PolicyStrict {
			return a.fail(obs, nil, domain.ReasonActException, msg)
		}
		return a.reject(obs, nil, domain.ReasonActException, msg), nil
	}
	raw := &action

	if !obs.WindowOpen {
		return a.reject(obs, raw, domain.ReasonWindowClosed, "response window is closed"), nil
	}
	if len(obs.ValidKeys) == 0 {
		if a.policy == domain.PolicyStrict {
			return a.fail(obs, raw, domain.ReasonEmptyValidKeys, "observation has no valid keys")
		}
		return a.reject(obs, raw, domain.ReasonEmptyValidKeys, "observation has no valid keys"), nil
	}

	if action.Key != "" && !obs.Accepts(action.Key) {
		msg := fmt.Sprintf("key %q not in valid keys %v", action.Key, obs.ValidKeys)
		if a.policy == domain.PolicyStrict {
			return a.fail(obs, raw, domain.ReasonInvalidKey, msg)
		}
		return a.reject(obs, raw, domain.ReasonInvalidKey, msg), nil
	}

	meta := maps.Clone(action.Meta)
	if meta == nil {
		meta = map[string]any{}
	}

	if action.Key == "" {
		if action.RT != nil {
			meta["ignored_rt_s"] = action.RT.Seconds()
		}
		return a.accept(obs, raw, domain.Action{Meta: meta}, domain.ValidationResult{
			Status:  domain.StatusOK,
			Reason:  domain.ReasonNoResponse,
			Message: "responder produced no key",
		}), nil
	}

	limit, bounded := obs.Limit()

	if action.RT == nil {
		if a.policy == domain.PolicyCoerce {
			rt := a.defaultRT
			if bounded && limit < rt {
				rt = limit
			}
			rt = max(0, rt)
			meta["coerced"] = string(domain.ReasonMissingRT)
			return a.accept(obs, raw, domain.Action{Key: action.Key, RT: &rt, Meta: meta}, domain.ValidationResult{
				Status:  domain.StatusCoerced,
				Reason:  domain.ReasonMissingRT,
				Message: "filled missing reaction time",
			}), nil
		}
		if a.policy == domain.PolicyStrict {
			return a.fail(obs, raw, domain.ReasonMissingRT, "key is set but reaction time is missing")
		}
		return a.reject(obs, raw, domain.ReasonMissingRT, "key is set but reaction time is missing"), nil
	}

	rt := *action.RT
	if rt < 0 || (bounded && rt > limit) {
		msg := fmt.Sprintf("rt %.3fs out of bounds for deadline %s", rt.Seconds(), describeLimit(limit, bounded))
		if a.policy == domain.PolicyStrict {
			return a.fail(obs, raw, domain.ReasonRTOutOfBounds, msg)
		}
		if a.policy == domain.PolicyCoerce && a.clampRT && bounded {
			clamped := min(max(0, rt), limit)
			meta["coerced"] = string(domain.ReasonRTClamped)
			return a.accept(obs, raw, domain.Action{Key: action.Key, RT: &clamped, Meta: meta}, domain.ValidationResult{
				Status:  domain.StatusCoerced,
				Reason:  domain.ReasonRTClamped,
				Message: "clamped reaction time into bounds",
			}), nil
		}
		return a.reject(obs, raw, domain.ReasonRTOutOfBounds, msg), nil
	}

	return a.accept(obs, raw, domain.Action{Key: action.Key, RT: &rt, Meta: meta}, domain.ValidationResult{Status: domain.StatusOK}), nil
}

func act(responder ports.Responder, obs domain.Observation) (action domain.Action, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	view := obs
	view.ValidKeys = append([]string(nil), obs.ValidKeys...)
	return responder.Act(view)
}

func (a *Adapter) accept(obs domain.Observation, raw *domain.Action, used domain.Action, v domain.ValidationResult) domain.HandledResponse {
	if v.Status == domain.StatusCoerced {
		a.logger.Info("responder action coerced", "phase", obs.Phase, "reason", v.Reason)
	}
	a.log(obs, raw, used, v)
	return domain.HandledResponse{Raw: raw, Used: used, Validation: v}
}

func (a *Adapter) reject(obs domain.Observation, raw *domain.Action, code domain.ReasonCode, msg string) domain.HandledResponse {
	used := domain.NoResponse(map[string]any{"rejected": string(code)})
	v := domain.ValidationResult{Status: domain.StatusRejected, Reason: code, Message: msg}
	a.logger.Warn("responder action rejected", "phase", obs.Phase, "reason", code, "msg", msg)
	a.log(obs, raw, used, v)
	return domain.HandledResponse{Raw: raw, Used: used, Validation: v}
}

func (a *Adapter) fail(obs domain.Observation, raw *domain.Action, code domain.ReasonCode, msg string) (domain.HandledResponse, error) {
	used := domain.NoResponse(map[string]any{"error": string(code)})
	v := domain.ValidationResult{Status: domain.StatusError, Reason: code, Message: msg}
	a.log(obs, raw, used, v)
	return domain.HandledResponse{Raw: raw, Used: used, Validation: v}, &domain.ResponderActionError{Code: code, Message: msg}
}

func (a *Adapter) log(obs domain.Observation, raw *domain.Action, used domain.Action, v domain.ValidationResult) {
	if a.sink == nil {
		return
	}
	rec := &ActionRecord{
		RecordHeader: domain.RecordHeader{Type: domain.RecordSimAction, Session: a.session},
		Obs:          ViewObservation(obs),
		UsedAction:   ViewAction(used),
		Validation:   v,
	}
	if raw != nil {
		rv := ViewAction(*raw)
		rec.RawAction = &rv
	}
	a.sink.Log(rec)
}

func (a *Adapter) warnMissingFields(obs domain.Observation) {
	if !obs.Mode.Automated() || a.sink == nil {
		return
	}
	var missing []string
	if obs.TrialID == "" {
		missing = append(missing, "trial_id")
	}
	if obs.Phase == "" {
		missing = append(missing, "phase")
	}
	if obs.Deadline == nil && obs.Window == nil {
		missing = append(missing, "deadline_s")
	}
	if len(obs.ValidKeys) == 0 {
		missing = append(missing, "valid_keys")
	}
	if len(missing) == 0 {
		return
	}
	a.sink.Log(&ObservationWarning{
		RecordHeader: domain.RecordHeader{Type: domain.RecordSimObservationWarning, Session: a.session},
		Obs:          ViewObservation(obs),
		Missing:      missing,
		Reason:       string(domain.ReasonMissingFields),
	})
}

func describeLimit(limit time.Duration, bounded bool) string {
	if !bounded {
		return "none"
	}
	return fmt.Sprintf("%.3fs", limit.Seconds())
}
