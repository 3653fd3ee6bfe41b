// Package health serves the keep-alive endpoint polled by the hosting
// platform, plus a JSON health check and Prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OnlineText        = "Bot da Pizzaria Romeo está ONLINE! 🍕"
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Status is the /healthz body.
type Status struct {
	Status   string `json:"status"`
	Primary  string `json:"primary"`
	Sessions int    `json:"sessions"`
	Uptime   string `json:"uptime"`
}

// Probe reports live state for /healthz. Either func may be nil.
type Probe struct {
	Primary  func() string
	Sessions func() int
}

type Server struct {
	srv     *http.Server
	probe   Probe
	started time.Time
	log     *slog.Logger
}

// New builds the server on :port. A nil registry disables /metrics.
func New(port int, probe Probe, reg *prometheus.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{probe: probe, started: time.Now(), log: log.With("component", "health")}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if reg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("keep-alive server listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("keep-alive server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(OnlineText))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	st := Status{Status: "ok", Uptime: time.Since(s.started).Round(time.Second).String()}
	if s.probe.Primary != nil {
		st.Primary = s.probe.Primary()
	}
	if s.probe.Sessions != nil {
		st.Sessions = s.probe.Sessions()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.log.Warn("encode health status", "err", err)
	}
}
