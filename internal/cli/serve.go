package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/trialkit/internal/config"
	httpadapter "github.com/aretw0/trialkit/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ServeOptions configures the responder serve command.
type ServeOptions struct {
	Addr       string
	ConfigPath string
	Kind       string
	Debug      bool
}

const shutdownTimeout = 5 * time.Second

// NewResponderServer resolves the responder named by opts (or the config's
// sim.responder section) and wraps it in an HTTP server with a private
// metrics registry.
func NewResponderServer(opts ServeOptions, logger *slog.Logger) (*httpadapter.Server, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	spec := cfg.Sim.Responder
	name := spec.Class
	if name == "" {
		name = spec.Kind
	}
	kwargs := spec.Kwargs
	if opts.Kind != "" && !strings.EqualFold(opts.Kind, name) {
		name, kwargs = opts.Kind, nil
	}
	if name == "" {
		name = "scripted"
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "http" {
		return nil, fmt.Errorf("refusing to serve the http responder: it would call itself")
	}
	responder, err := config.DefaultRegistry().Build(name, kwargs)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	logger.Info("responder loaded", "name", name)
	return httpadapter.NewServer(responder,
		httpadapter.WithLogger(logger),
		httpadapter.WithGatherer(reg),
	), nil
}

// Serve runs the responder server until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, opts ServeOptions, stdout io.Writer) error {
	logger, err := createLogger(opts.Debug, "info")
	if err != nil {
		return err
	}
	srv, err := NewResponderServer(opts, logger)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", opts.Addr, err)
	}
	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	printSystemMessage(stdout, "Responder listening on http://%s", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- hs.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	printSystemMessage(stdout, "Responder stopped.")
	return nil
}
