// Package httpapi exposes the question-answering pipeline and the add-event
// write path over HTTP.
//
// Routes:
//
//	POST /api/chat       {"query": "..."} -> {"response": "...", ...}
//	GET  /api/search?q=  retrieval only, no answer generation
//	POST /api/add-event  bearer-token protected event creation
//	GET  /healthz        liveness plus a database ping
//	GET  /metrics        Prometheus exposition
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/eventsage/internal/indexer"
	"github.com/dshills/eventsage/internal/metrics"
	"github.com/dshills/eventsage/internal/pipeline"
	"github.com/dshills/eventsage/internal/router"
	"github.com/dshills/eventsage/pkg/logger"
	"github.com/dshills/eventsage/pkg/types"
)

// retryAfterSeconds is sent with 503 responses for retryable failures
const retryAfterSeconds = 5

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// QA answers and searches questions
type QA interface {
	Ask(ctx context.Context, question string) (*pipeline.Answer, error)
	Search(ctx context.Context, question string) (*router.Result, error)
}

// EventWriter indexes new events
type EventWriter interface {
	AddInput(ctx context.Context, in indexer.EventInput) (*types.Event, error)
}

// Pinger reports backend health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies required by HTTP handlers
type Dependencies struct {
	QA      QA
	Events  EventWriter
	Health  Pinger
	Logger  logger.Logger
	Options Options
}

// Options configures the HTTP surface
type Options struct {
	AdminToken  string   // empty disables POST /api/add-event
	CORSOrigins []string // exact origins allowed for browser calls
}

// Server wires HTTP routes for the API.
type Server struct {
	chatHandler   *ChatHandler
	searchHandler *SearchHandler
	eventsHandler *EventsHandler
	healthHandler *HealthHandler
	opts          Options
	log           logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("http")
	return &Server{
		chatHandler:   &ChatHandler{qa: deps.QA, log: log},
		searchHandler: &SearchHandler{qa: deps.QA},
		eventsHandler: &EventsHandler{events: deps.Events, token: deps.Options.AdminToken, log: log},
		healthHandler: &HealthHandler{pinger: deps.Health},
		opts:          deps.Options,
		log:           log,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/chat", MetricsMiddleware(s.chatHandler.HandleChat, "chat"))
	mux.HandleFunc("/api/search", MetricsMiddleware(s.searchHandler.HandleSearch, "search"))
	mux.HandleFunc("/api/add-event", MetricsMiddleware(s.eventsHandler.HandleAddEvent, "add_event"))
}

// Handler returns the routed mux wrapped in the request-ID and CORS
// middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return RequestIDMiddleware(CORSMiddleware(mux, s.opts.CORSOrigins), s.log)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a handler error onto a status code
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, pipeline.ErrEmptyQuestion),
		errors.Is(err, types.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, types.ErrRetryable), errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, types.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
