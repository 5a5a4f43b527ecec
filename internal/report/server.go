package report

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psantana5/svclaunch/pkg/logging"
)

// HealthFunc reports whether the supervised server is still running
type HealthFunc func() bool

// Server exposes /metrics and /healthz for the running launcher
type Server struct {
	addr   string
	router *mux.Router
	srv    *http.Server
	logger *logging.Logger
}

// NewServer builds the HTTP surface. health may be nil, meaning always healthy.
func NewServer(addr string, m *Metrics, health HealthFunc, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	if health == nil {
		health = func() bool { return true }
	}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		state := "running"
		if !health() {
			status = http.StatusServiceUnavailable
			state = "exited"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": state})
	}).Methods(http.MethodGet)

	return &Server{
		addr:   addr,
		router: r,
		logger: logger,
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background.
// Bind errors are returned synchronously.
func (s *Server) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server stopped", logging.Fields{"error": err.Error()})
		}
	}()

	s.logger.Info("Metrics server listening", logging.Fields{"addr": ln.Addr().String()})
	return ln.Addr(), nil
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
