package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/ports"
	"github.com/aretw0/trialkit/pkg/sim"
	"github.com/google/uuid"
)

// ErrRemote is returned when the remote responder answers with a non-2xx status.
var ErrRemote = errors.New("remote responder error")

// DefaultTimeout bounds each call to a remote responder.
const DefaultTimeout = 5 * time.Second

// Client is a ports.Responder backed by a remote Server.
type Client struct {
	baseURL   string
	http      *http.Client
	logger    *slog.Logger
	sessionID string
	newID     func() string
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		cl.http.Timeout = d
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Act implements ports.Responder.
func (c *Client) Act(obs domain.Observation) (domain.Action, error) {
	var view sim.ActionView
	req := ActRequest{SessionID: c.sessionID, Obs: sim.ViewObservation(obs)}
	if err := c.call("/act", req, &view); err != nil {
		return domain.Action{}, err
	}
	return view.Action(), nil
}

// StartSession forwards the session identity. The remote side derives its own
// generator from the session seed.
func (c *Client) StartSession(session domain.SessionInfo, _ *rand.Rand) error {
	c.sessionID = session.SessionID
	return c.call("/session/start", StartRequest{Session: session}, nil)
}

// OnFeedback implements ports.FeedbackReceiver.
func (c *Client) OnFeedback(fb domain.Feedback) error {
	return c.call("/feedback", feedbackFromDomain(c.sessionID, fb), nil)
}

// EndSession implements ports.SessionEnder.
func (c *Client) EndSession() error {
	return c.call("/session/end", struct{}{}, nil)
}

func (c *Client) call(path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	id := c.newID()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, id)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		c.logger.Warn("remote responder failed", "request_id", id, "path", path, "status", resp.StatusCode, "err", e.Error)
		return fmt.Errorf("%s returned %d (%s): %w", path, resp.StatusCode, e.Error, ErrRemote)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// ClientConfig holds the keyword arguments of the "http" responder.
type ClientConfig struct {
	URL      string  `mapstructure:"url"`
	TimeoutS float64 `mapstructure:"timeout_s"`
}

// ClientFactory builds a Client from responder kwargs.
func ClientFactory(kwargs map[string]any) (ports.Responder, error) {
	var cfg ClientConfig
	if err := sim.Decode(kwargs, &cfg); err != nil {
		return nil, fmt.Errorf("http responder: %w", err)
	}
	if cfg.URL == "" {
		return nil, errors.New("http responder: url is required")
	}
	var opts []ClientOption
	if cfg.TimeoutS > 0 {
		opts = append(opts, WithTimeout(time.Duration(cfg.TimeoutS*float64(time.Second))))
	}
	return NewClient(cfg.URL, opts...), nil
}

// Register adds the "http" responder to reg.
func Register(reg *sim.Registry) {
	reg.Register("http", ClientFactory)
}
