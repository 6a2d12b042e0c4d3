// Package server exposes the agent's local control surface: Prometheus
// metrics, a health probe, and the HTTP endpoints the on-device GUI uses to
// drive update decisions and power management.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/powerdock-io/powerdock/internal/pkg/metrics"
	"github.com/powerdock-io/powerdock/pkg/log"
	"github.com/powerdock-io/powerdock/pkg/options"
)

// Control is the slice of the agent the HTTP surface may drive. Defined
// here, on the consumer side, so the server does not import the agent.
type Control interface {
	CheckForUpdate(ctx context.Context)
	ConfirmUpdate(ctx context.Context)
	CancelUpdate(ctx context.Context)
	UpdateState() (state, pendingVersion string)
	Reboot(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type Server struct {
	opts   *options.HttpOptions
	ctl    Control
	logger log.Logger
}

func New(opts *options.HttpOptions, ctl Control, logger log.Logger) *Server {
	return &Server{opts: opts, ctl: ctl, logger: logger.WithName("http")}
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.routes(),
		ReadTimeout:  s.opts.Timeout,
		WriteTimeout: s.opts.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control server listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/update/state", s.handleUpdateState).Methods(http.MethodGet)
	v1.HandleFunc("/update/check", s.handleUpdateCheck).Methods(http.MethodPost)
	v1.HandleFunc("/update/confirm", s.handleUpdateConfirm).Methods(http.MethodPost)
	v1.HandleFunc("/update/cancel", s.handleUpdateCancel).Methods(http.MethodPost)
	v1.HandleFunc("/system/reboot", s.handleReboot).Methods(http.MethodPost)
	v1.HandleFunc("/system/shutdown", s.handleShutdown).Methods(http.MethodPost)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpdateState(w http.ResponseWriter, _ *http.Request) {
	state, pending := s.ctl.UpdateState()
	writeJSON(w, http.StatusOK, map[string]string{
		"state":          state,
		"pendingVersion": pending,
	})
}

// handleUpdateCheck kicks off a check asynchronously. A check can take up
// to the fetch timeout, and the GUI polls /update/state for the outcome, so
// the request returns as soon as the check is accepted or rejected.
func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	go s.ctl.CheckForUpdate(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleUpdateConfirm(w http.ResponseWriter, r *http.Request) {
	s.ctl.ConfirmUpdate(r.Context())
	state, pending := s.ctl.UpdateState()
	writeJSON(w, http.StatusOK, map[string]string{
		"state":          state,
		"pendingVersion": pending,
	})
}

func (s *Server) handleUpdateCancel(w http.ResponseWriter, r *http.Request) {
	s.ctl.CancelUpdate(r.Context())
	state, pending := s.ctl.UpdateState()
	writeJSON(w, http.StatusOK, map[string]string{
		"state":          state,
		"pendingVersion": pending,
	})
}

func (s *Server) handleReboot(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Reboot(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Shutdown(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
