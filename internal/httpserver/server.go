// Package httpserver exposes liveness, health, metrics and the Telegram
// webhook over HTTP.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"tg_channel_gate_bot/internal/logging"
)

const (
	mongoPingTimeout   = 2 * time.Second
	readHeaderTimeout  = 2 * time.Second
	healthListenPrefix = ":"

	statusOK       = "ok"
	statusDegraded = "degraded"
	statusError    = "error"
)

// MongoChecker defines the subset of MongoDB client behavior required for health.
type MongoChecker interface {
	Ping(ctx context.Context) error
}

// Options configures the optional parts of the server.
type Options struct {
	// MongoChecker is pinged by /healthz when user bookkeeping is enabled.
	MongoChecker MongoChecker
	// Gatherer backs /metrics; nil uses the default Prometheus registry.
	Gatherer prometheus.Gatherer
	// WebhookPath and WebhookHandler mount the Telegram webhook when both are set.
	WebhookPath    string
	WebhookHandler http.Handler
}

// Server owns the underlying HTTP server.
type Server struct {
	server       *http.Server
	logger       *logrus.Entry
	mongoChecker MongoChecker
}

type healthResponse struct {
	Status   string `json:"status"`
	Mongo    string `json:"mongo,omitempty"`
	Channels int    `json:"channels"`
}

// NewServer constructs a server listening on the provided port. channels is
// the size of the registry, reported by /healthz.
func NewServer(port int, channels int, opts Options, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger:       logger,
		mongoChecker: opts.MongoChecker,
	}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Get("/", handleRoot)
	r.Get("/healthz", srv.handleHealth(channels))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if opts.WebhookPath != "" && opts.WebhookHandler != nil {
		r.Post(opts.WebhookPath, opts.WebhookHandler.ServeHTTP)
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("%s%d", healthListenPrefix, port),
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "http_listen",
		"addr":  s.server.Addr,
	}).Info("starting http server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server listen: %w", err)
	}

	s.logger.WithField("event", "http_stopped").Info("http server stopped")
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleHealth(channels int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: statusOK, Channels: channels}

		if s.mongoChecker != nil {
			pingCtx, cancel := context.WithTimeout(r.Context(), mongoPingTimeout)
			err := s.mongoChecker.Ping(pingCtx)
			cancel()

			if err != nil {
				resp.Status = statusDegraded
				resp.Mongo = statusError
				s.logger.WithField("event", "health_mongo_error").WithError(err).Warn("mongo ping failed during health check")
			} else {
				resp.Mongo = statusOK
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			s.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
		}
	}
}
