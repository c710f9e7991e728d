package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aretw0/trialkit/internal/config"
	"github.com/aretw0/trialkit/internal/presentation/tui"
	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/sim"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrHumanMode is returned when a run asks for human mode; the CLI only has a headless display.
var ErrHumanMode = errors.New("human mode needs a real display and keyboard; use qa or sim")

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	ConfigPath string
	Mode       string
	Seed       *int64
	Trials     int
	OutputDir  string
	Responder  string
	Version    string
	Debug      bool
	Quiet      bool
}

// Execute loads the config, builds the session and runs the cueing task.
func Execute(ctx context.Context, opts RunOptions, stdout io.Writer) (Summary, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return Summary{}, err
	}
	if opts.Mode != "" {
		cfg.Sim.Mode = opts.Mode
	}
	if opts.Seed != nil {
		cfg.Task.Seed = *opts.Seed
	}
	if opts.Trials > 0 {
		cfg.Task.Trials = opts.Trials
	}
	if opts.OutputDir != "" {
		cfg.Task.OutputDir = opts.OutputDir
	}
	if opts.Responder != "" {
		cfg.Sim.Responder = sim.ResponderSpec{Kind: opts.Responder}
	}
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	if cfg.Mode() == domain.ModeHuman {
		return Summary{}, ErrHumanMode
	}

	logger, err := createLogger(opts.Debug, cfg.Logging.Level)
	if err != nil {
		return Summary{}, err
	}
	if !opts.Quiet {
		tui.PrintBanner(stdout, opts.Version)
	}

	buildOpts := []config.BuildOption{
		config.WithLogger(logger),
		config.WithMetrics(prometheus.NewRegistry()),
	}
	if opts.Debug {
		buildOpts = append(buildOpts, config.WithStdout(stdout))
	}
	s, err := config.Build(cfg, buildOpts...)
	if err != nil {
		return Summary{}, err
	}
	defer s.Close()

	rows := io.Discard
	if s.Dir != "" {
		f, err := os.Create(filepath.Join(s.Dir, "trials.jsonl"))
		if err != nil {
			return Summary{}, fmt.Errorf("create trials file: %w", err)
		}
		defer f.Close()
		rows = f
	}

	if !opts.Quiet {
		printSystemMessage(stdout, "Session '%s' (%s, seed %d, %d trials).",
			s.Info.SessionID, s.Info.Mode, s.Info.Seed, cfg.Task.Trials)
	}
	sum, err := RunTask(ctx, s, rows)
	if err != nil {
		if errors.Is(err, context.Canceled) && !opts.Quiet {
			printSystemMessage(stdout, "Interrupted after %d trials.", sum.Trials)
		}
		return sum, err
	}
	if !opts.Quiet {
		printSummary(stdout, s, sum)
	}
	return sum, nil
}

func printSummary(w io.Writer, s *config.Session, sum Summary) {
	tui.Verdict(w, sum.Rejected == 0, fmt.Sprintf("%d trials completed", sum.Trials))
	tui.Stat(w, "hits", sum.Hits)
	tui.Stat(w, "errors", sum.Errors)
	tui.Stat(w, "timeouts", sum.Timeouts)
	tui.Stat(w, "rejected actions", sum.Rejected)
	tui.Stat(w, "accuracy", fmt.Sprintf("%.2f", sum.Accuracy()))
	tui.Stat(w, "mean rt", sum.MeanRT)
	if s.Dir != "" {
		tui.Stat(w, "output", s.Dir)
	}
}
