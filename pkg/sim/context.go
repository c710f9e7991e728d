package sim

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/ports"
)

// Config is the run-scoped configuration consumed at session start.
type Config struct {
	EnableScaling bool
	TimingScale   float64
	MinFrames     int
	Strict        bool
	MaxWait       time.Duration
	Policy        domain.Policy
	DefaultRT     time.Duration
	ClampRT       bool
}

// DefaultConfig returns the defaults: no scaling, two-frame floor, 10s max wait,
// warn policy and a 200ms default RT.
func DefaultConfig() Config {
	return Config{
		TimingScale: 1,
		MinFrames:   2,
		MaxWait:     10 * time.Second,
		Policy:      domain.PolicyWarn,
		DefaultRT:   DefaultRT,
	}
}

// Context is the explicit run context handed to phase engines.
type Context struct {
	Mode          domain.Mode
	Config        Config
	Session       domain.SessionInfo
	Responder     ports.Responder
	ResponderInfo LoadInfo
	Adapter       *Adapter
	RNG           *rand.Rand
	Sink          ports.AuditSink
	Logger        *slog.Logger
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// UseResponder sets the responder used in automated modes.
func UseResponder(r ports.Responder, info LoadInfo) ContextOption {
	return func(c *Context) {
		c.Responder = r
		c.ResponderInfo = info
	}
}

// UseSink sets the audit sink shared by the adapter and the phases.
func UseSink(sink ports.AuditSink) ContextOption {
	return func(c *Context) {
		c.Sink = sink
	}
}

// UseLogger sets the logger.
func UseLogger(logger *slog.Logger) ContextOption {
	return func(c *Context) {
		c.Logger = logger
	}
}

// NewContext builds the context, derives the session RNG and starts the
// responder session. A responder that fails to start is only fatal when strict.
func NewContext(session domain.SessionInfo, cfg Config, opts ...ContextOption) (*Context, error) {
	session.Mode = domain.ParseMode(string(session.Mode))
	if session.ParticipantID == "" {
		session.ParticipantID = DefaultParticipant
	}
	if session.SessionID == "" {
		session.SessionID = DefaultSessionID(session.Mode, session.ParticipantID, session.Seed)
	}
	if cfg.Policy == "" {
		cfg.Policy = domain.PolicyWarn
		if cfg.Strict {
			cfg.Policy = domain.PolicyStrict
		}
	}
	cfg.Policy = domain.ParsePolicy(string(cfg.Policy))
	if cfg.TimingScale <= 0 {
		cfg.TimingScale = 1
	}

	c := &Context{
		Mode:    session.Mode,
		Config:  cfg,
		Session: session,
		RNG:     NewRNG(session.Seed),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Adapter = NewAdapter(
		WithPolicy(cfg.Policy),
		WithDefaultRT(cfg.DefaultRT),
		WithClampRT(cfg.ClampRT),
		WithSink(c.Sink),
		WithSession(session),
		WithLogger(c.Logger),
	)

	if starter, ok := c.Responder.(ports.SessionStarter); ok && c.Mode.Automated() {
		if err := starter.StartSession(session, c.RNG); err != nil {
			if cfg.Strict {
				return nil, fmt.Errorf("failed to start responder session: %w", err)
			}
			c.Logger.Warn("responder session start failed", "err", err)
		}
	}
	return c, nil
}

// Automated reports whether responses are injected.
func (c *Context) Automated() bool {
	return c != nil && c.Mode.Automated()
}

// Feedback forwards post-capture feedback to responders that learn from it.
func (c *Context) Feedback(fb domain.Feedback) {
	if c == nil {
		return
	}
	if r, ok := c.Responder.(ports.FeedbackReceiver); ok {
		if err := r.OnFeedback(fb); err != nil {
			c.Logger.Warn("responder feedback failed", "phase", fb.Phase, "err", err)
		}
	}
}

// Close ends the responder session.
func (c *Context) Close() error {
	if c == nil {
		return nil
	}
	if r, ok := c.Responder.(ports.SessionEnder); ok {
		if err := r.EndSession(); err != nil {
			return fmt.Errorf("failed to end responder session: %w", err)
		}
	}
	return nil
}

// ErrNoResponder is returned by Respond when the context has no responder in an automated mode.
var ErrNoResponder = errors.New("automated mode requires a responder")

// Respond runs the adapter against the context responder.
func (c *Context) Respond(obs domain.Observation) (domain.HandledResponse, error) {
	if c.Responder == nil && c.Config.Strict {
		return domain.HandledResponse{}, ErrNoResponder
	}
	obs.Mode = c.Mode
	return c.Adapter.HandleResponse(obs, c.Responder)
}
