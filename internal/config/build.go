package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/trialkit/pkg/adapters/headless"
	httpadapter "github.com/aretw0/trialkit/pkg/adapters/http"
	"github.com/aretw0/trialkit/pkg/adapters/redis"
	"github.com/aretw0/trialkit/pkg/audit"
	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/drivers"
	"github.com/aretw0/trialkit/pkg/observability"
	"github.com/aretw0/trialkit/pkg/ports"
	"github.com/aretw0/trialkit/pkg/sim"
	"github.com/aretw0/trialkit/pkg/trigger"
	"github.com/prometheus/client_golang/prometheus"
)

// Session is everything a run needs, built once from a Config.
type Session struct {
	Config   Config
	Info     domain.SessionInfo
	Context  *sim.Context
	Triggers *trigger.Runtime
	Journal  *audit.Journal
	Display  *headless.Display
	Metrics  *observability.Metrics
	Logger   *slog.Logger

	// Dir is where audit.jsonl and trials.jsonl go; empty disables files.
	Dir   string
	audit *audit.JSONLWriter
}

type buildSettings struct {
	registry  *sim.Registry
	factories map[string]drivers.Factory
	metrics   prometheus.Registerer
	logger    *slog.Logger
	stdout    io.Writer
	sinks     []ports.AuditSink
	send      drivers.SendFunc
}

// BuildOption configures Build.
type BuildOption func(*buildSettings)

// WithRegistry replaces the responder registry.
func WithRegistry(reg *sim.Registry) BuildOption {
	return func(s *buildSettings) {
		s.registry = reg
	}
}

// WithMetrics registers audit metrics on reg.
func WithMetrics(reg prometheus.Registerer) BuildOption {
	return func(s *buildSettings) {
		s.metrics = reg
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(s *buildSettings) {
		s.logger = logger
	}
}

// WithStdout is where the mock driver prints sent codes.
func WithStdout(w io.Writer) BuildOption {
	return func(s *buildSettings) {
		s.stdout = w
	}
}

// WithAuditSink adds a sink that receives every stamped audit record.
func WithAuditSink(sink ports.AuditSink) BuildOption {
	return func(s *buildSettings) {
		s.sinks = append(s.sinks, sink)
	}
}

// WithSendFunc enables the "callable" driver type.
func WithSendFunc(fn drivers.SendFunc) BuildOption {
	return func(s *buildSettings) {
		s.send = fn
	}
}

// DefaultRegistry is the built-in responders plus the remote "http" responder.
func DefaultRegistry() *sim.Registry {
	reg := sim.DefaultRegistry()
	httpadapter.Register(reg)
	return reg
}

// Build resolves the responder and the trigger driver, opens the audit
// journal and starts the responder session.
func Build(cfg Config, opts ...BuildOption) (*Session, error) {
	bs := &buildSettings{
		registry:  DefaultRegistry(),
		factories: map[string]drivers.Factory{"redis": redis.Factory},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(bs)
	}

	mode := cfg.Mode()
	info := domain.SessionInfo{
		ParticipantID: cfg.Task.Participant,
		SessionID:     cfg.Task.SessionID,
		Seed:          cfg.Task.Seed,
		Mode:          mode,
		TaskName:      cfg.Task.Name,
		TaskVersion:   cfg.Task.Version,
	}
	if info.ParticipantID == "" {
		info.ParticipantID = sim.DefaultParticipant
	}
	if info.SessionID == "" {
		info.SessionID = sim.DefaultSessionID(mode, info.ParticipantID, info.Seed)
	}

	s := &Session{
		Config:  cfg,
		Info:    info,
		Display: headless.NewDisplay(cfg.FramePeriod()),
		Logger:  bs.logger,
	}

	sinks := audit.Multi(bs.sinks)
	if cfg.Task.OutputDir != "" {
		s.Dir = filepath.Join(cfg.Task.OutputDir, info.SessionID)
		w, err := audit.OpenJSONL(filepath.Join(s.Dir, "audit.jsonl"), bs.logger)
		if err != nil {
			return nil, err
		}
		s.audit = w
		sinks = append(sinks, w)
	}
	if bs.metrics != nil {
		s.Metrics = observability.NewMetrics(bs.metrics)
		sinks = append(sinks, s.Metrics)
	}
	s.Journal = audit.NewJournal(audit.WithSession(info), audit.WithSink(sinks))

	dcfg, err := cfg.DriverConfig()
	if err != nil {
		return nil, s.abort(err)
	}
	builder := drivers.Builder{Stdout: bs.stdout, Send: bs.send, Logger: bs.logger, Factory: bs.factories}
	driver, err := builder.FromConfig(dcfg)
	if err != nil {
		return nil, s.abort(err)
	}
	strict := cfg.TriggersStrict()
	s.Triggers = trigger.New(driver,
		trigger.WithStrict(strict),
		trigger.WithSink(s.Journal),
		trigger.WithLogger(bs.logger),
	)
	if err := s.Triggers.Open(); err != nil {
		if strict {
			return nil, s.abort(fmt.Errorf("open trigger driver: %w", err))
		}
		bs.logger.Warn("trigger driver failed to open", "driver", driver.Name(), "err", err)
	}

	responder, loadInfo, err := sim.LoadResponder(mode, cfg.Sim.Responder, bs.registry, cfg.Sim.Strict)
	if err != nil {
		return nil, s.abort(err)
	}
	if loadInfo.Fallback {
		bs.logger.Warn("responder fell back to scripted", "name", cfg.Sim.Responder.Kind, "err", loadInfo.Error)
	}
	s.Context, err = sim.NewContext(info, cfg.SimConfig(),
		sim.UseResponder(responder, loadInfo),
		sim.UseSink(s.Journal),
		sim.UseLogger(bs.logger),
	)
	if err != nil {
		return nil, s.abort(err)
	}
	bs.logger.Info("session ready",
		"session_id", info.SessionID,
		"mode", mode,
		"responder", loadInfo.Name,
		"driver", driver.Name(),
	)
	return s, nil
}

func (s *Session) abort(err error) error {
	return errors.Join(err, s.Close())
}

// Close ends the responder session, closes the driver and flushes the audit file.
func (s *Session) Close() error {
	var errs []error
	if s.Context != nil {
		errs = append(errs, s.Context.Close())
		s.Context = nil
	}
	if s.Triggers != nil {
		errs = append(errs, s.Triggers.Close())
		s.Triggers = nil
	}
	if s.audit != nil {
		if s.audit.Failed > 0 {
			s.Logger.Warn("audit records dropped", "count", s.audit.Failed)
		}
		errs = append(errs, s.audit.Close())
		s.audit = nil
	}
	return errors.Join(errs...)
}
