// Package web provides the HTTP surface of the signal-reset daemon: the
// status page, its JSON form, on-demand re-arming and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/signal-reset/internal/metrics"
	"github.com/sweeney/signal-reset/internal/scheduler"
	"github.com/sweeney/signal-reset/internal/status"
	"github.com/sweeney/signal-reset/internal/store"
)

// DefaultHistoryLimit is how many resets /resets returns without ?limit.
const DefaultHistoryLimit = 30

// Rearmer arms the next reset on demand.
type Rearmer interface {
	OnManual() (scheduler.Target, error)
}

// Store is the part of the reset store the HTTP surface reads and writes.
type Store interface {
	SetLastSignal(ctx context.Context, signal string) error
	ClearLastSignal(ctx context.Context) error
	RecentResets(ctx context.Context, limit int) ([]store.Reset, error)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	rearmer    Rearmer
	store      Store
	logger     *log.Logger
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, rearmer Rearmer, st Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		tracker: tracker,
		rearmer: rearmer,
		store:   st,
		logger:  logger,
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(s.requestLog)
	r.Use(chimw.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/index.json", s.handleJSON)
	r.Get("/resets", s.handleResets)
	r.Post("/schedule", s.handleSchedule)
	r.Post("/signal", s.handleSignal)
	r.Delete("/signal", s.handleClearSignal)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// Handler returns the router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLog logs each request and counts it by matched route.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.RecordRequest(r.Method, route, ww.Status())
		s.logger.Debug("request",
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.logger.Error("render status page", "err", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

// ScheduleResponse is the body of a successful POST /schedule.
type ScheduleResponse struct {
	Schedule ScheduleInner `json:"schedule"`
}

// ScheduleInner describes the armed target.
type ScheduleInner struct {
	Target      string `json:"target"`
	ComputedAt  string `json:"computed_at"`
	LeadSeconds int64  `json:"lead_seconds"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Outcome string `json:"outcome,omitempty"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	target, err := s.rearmer.OnManual()
	if err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, scheduler.ErrPermissionDenied):
			code = http.StatusForbidden
		case errors.Is(err, scheduler.ErrPortRegistrationFailed):
			code = http.StatusBadGateway
		}
		writeJSON(w, code, ErrorResponse{Error: err.Error(), Outcome: string(scheduler.OutcomeOf(err))})
		return
	}

	writeJSON(w, http.StatusOK, ScheduleResponse{Schedule: ScheduleInner{
		Target:      target.At.Format(time.RFC3339),
		ComputedAt:  target.ComputedAt.Format(time.RFC3339),
		LeadSeconds: int64(target.Lead().Seconds()),
	}})
}

// SignalRequest is the body of POST /signal.
type SignalRequest struct {
	Signal string `json:"signal"`
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var req SignalRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	signal := strings.TrimSpace(req.Signal)
	if signal == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "signal is required"})
		return
	}

	if err := s.store.SetLastSignal(r.Context(), signal); err != nil {
		s.logger.Error("store last signal", "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	s.tracker.SetLastSignal(signal)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearSignal(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearLastSignal(r.Context()); err != nil {
		s.logger.Error("clear last signal", "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	s.tracker.SetLastSignal("")
	w.WriteHeader(http.StatusNoContent)
}

// ResetJSON is one history entry in GET /resets.
type ResetJSON struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	FiredAt      string `json:"fired_at"`
	ScheduledFor string `json:"scheduled_for,omitempty"`
}

func (s *Server) handleResets(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	resets, err := s.store.RecentResets(r.Context(), limit)
	if err != nil {
		s.logger.Error("read reset history", "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	out := make([]ResetJSON, 0, len(resets))
	for _, rs := range resets {
		item := ResetJSON{
			ID:      rs.ID,
			Date:    rs.Date,
			FiredAt: rs.FiredAt.UTC().Format(time.RFC3339),
		}
		if !rs.ScheduledFor.IsZero() {
			item.ScheduledFor = rs.ScheduledFor.UTC().Format(time.RFC3339)
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string][]ResetJSON{"resets": out})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
