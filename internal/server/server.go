// Package server exposes the wizard engine over an HTTP JSON surface.
// Responses use the same success/message/data/errors envelope the
// remote backend speaks.
package server

import (
	"context"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lead-capture/internal/common/config"
	"lead-capture/internal/common/logger"
	"lead-capture/internal/form/session"
)

// Server is the HTTP front of the wizard engine.
type Server struct {
	httpServer *http.Server
	log        logger.Logger
}

// New builds the server with all routes registered.
func New(cfg config.ServerConfig, manager *session.Manager, health HealthChecker, log logger.Logger) *Server {
	h := newHandlers(manager, health, log)

	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions", h.createSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", h.getSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.deleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/loan-details", h.updateLoanDetails).Methods(http.MethodPatch)
	api.HandleFunc("/sessions/{id}/contact-details", h.updateContactDetails).Methods(http.MethodPatch)
	api.HandleFunc("/sessions/{id}/next", h.next).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/back", h.back).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/submit", h.submit).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/retry", h.retry).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/reset", h.reset).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/register", h.register).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/logout", h.logout).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/admin/overview", h.adminOverview).Methods(http.MethodGet)

	debug := r.PathPrefix("/debug/pprof").Subrouter()
	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.PathPrefix("/").Handler(http.HandlerFunc(pprof.Index))

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Address,
			Handler:      r,
			ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Millisecond,
			WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Millisecond,
		},
		log: log,
	}
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info("http server listening", map[string]interface{}{
		"address": s.httpServer.Addr,
	})
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
