package http

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/ports"
	"github.com/aretw0/trialkit/pkg/sim"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves one responder. Calls are serialized because responders keep
// per-session state and are not required to be safe for concurrent use.
type Server struct {
	responder ports.Responder
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
	streams   *StreamManager

	mu      sync.Mutex
	session *domain.SessionInfo
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer exposes g on GET /metrics.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewServer wraps responder. A nil responder never answers.
func NewServer(responder ports.Responder, opts ...ServerOption) *Server {
	if responder == nil {
		responder = sim.NullResponder{}
	}
	s := &Server{
		responder: responder,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		streams:   NewStreamManager(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Streams returns the action event stream manager.
func (s *Server) Streams() *StreamManager {
	return s.streams
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Post("/act", s.act)
	r.Post("/feedback", s.feedback)
	r.Post("/session/start", s.startSession)
	r.Post("/session/end", s.endSession)
	r.Get("/events", s.events)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// requestID echoes the caller's X-Request-ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := map[string]any{"status": "ok"}
	if s.session != nil {
		resp["session_id"] = s.session.SessionID
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) act(w http.ResponseWriter, r *http.Request) {
	var body ActRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	action, err := s.callAct(body.Obs.Observation())
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, fmt.Errorf("act: %w", err))
		return
	}

	view := sim.ViewAction(action)
	s.logger.Debug("act", "request_id", r.Header.Get(RequestIDHeader), "phase", body.Obs.Phase, "responded", action.Responded())
	if payload, err := json.Marshal(map[string]any{
		"request_id": r.Header.Get(RequestIDHeader),
		"obs":        body.Obs,
		"action":     view,
	}); err == nil {
		s.streams.Broadcast(body.SessionID, string(payload))
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) feedback(w http.ResponseWriter, r *http.Request) {
	var body FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if fr, ok := s.responder.(ports.FeedbackReceiver); ok {
		if err := s.callFeedback(fr, body.toDomain()); err != nil {
			s.fail(w, r, http.StatusInternalServerError, fmt.Errorf("feedback: %w", err))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if starter, ok := s.responder.(ports.SessionStarter); ok {
		if err := starter.StartSession(body.Session, sim.NewRNG(body.Session.Seed)); err != nil {
			s.fail(w, r, http.StatusInternalServerError, fmt.Errorf("start session: %w", err))
			return
		}
	}
	session := body.Session
	s.session = &session
	s.logger.Info("responder session started", "session_id", session.SessionID, "seed", session.Seed)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ender, ok := s.responder.(ports.SessionEnder); ok {
		if err := ender.EndSession(); err != nil {
			s.fail(w, r, http.StatusInternalServerError, fmt.Errorf("end session: %w", err))
			return
		}
	}
	s.session = nil
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) callAct(obs domain.Observation) (domain.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responder.Act(obs)
}

func (s *Server) callFeedback(fr ports.FeedbackReceiver, fb domain.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fr.OnFeedback(fb)
}

// events streams act events as server-sent events. Without session_id every
// session is included.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(r.URL.Query().Get("session_id"))
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: act\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	id := r.Header.Get(RequestIDHeader)
	if status >= http.StatusInternalServerError {
		s.logger.Error("responder request failed", "request_id", id, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Warn("responder request rejected", "request_id", id, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), RequestID: id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
