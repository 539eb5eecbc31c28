// Package server exposes the session, dashboard panels and report flow to a
// browser UI over a local HTTP and WebSocket surface.
package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/guardian-ibera/firewatch/internal/config"
	"github.com/guardian-ibera/firewatch/internal/dashboard"
	"github.com/guardian-ibera/firewatch/internal/guard"
	"github.com/guardian-ibera/firewatch/internal/model"
	"github.com/guardian-ibera/firewatch/internal/report"
	"github.com/guardian-ibera/firewatch/internal/session"
)

// LoginPath is the login entry point unauthenticated requests are sent to.
const LoginPath = "/login"

type Registrar interface {
	Register(ctx context.Context, reg model.Registration) (model.User, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	cfg       *config.Config
	session   *session.Store
	registrar Registrar
	dashboard *dashboard.Dashboard
	flow      *report.Flow
	hub       *Hub
}

func New(cfg *config.Config, sess *session.Store, registrar Registrar, dash *dashboard.Dashboard, flow *report.Flow, hub *Hub) *Server {
	return &Server{cfg: cfg, session: sess, registrar: registrar, dashboard: dash, flow: flow, hub: hub}
}

// Router returns the HTTP handler with all routes registered.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	r.HandleFunc(LoginPath, s.handleLoginEntry).Methods(http.MethodGet)
	r.HandleFunc(LoginPath, s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)

	protected := r.NewRoute().Subrouter()
	protected.Use(guard.Middleware(s.session, LoginPath))
	protected.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	protected.HandleFunc("/dashboard/fires", s.handleFires).Methods(http.MethodPost)
	protected.HandleFunc("/dashboard/alerts", s.handleAlerts).Methods(http.MethodPost)
	protected.HandleFunc("/dashboard/historical", s.handleHistorical).Methods(http.MethodPost)
	protected.HandleFunc("/dashboard/vegetation", s.handleVegetation).Methods(http.MethodPost)
	protected.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
	protected.HandleFunc("/report/point", s.handleReportPoint).Methods(http.MethodPost)
	protected.HandleFunc("/report/description", s.handleReportDescription).Methods(http.MethodPost)
	protected.HandleFunc("/report/submit", s.handleReportSubmit).Methods(http.MethodPost)
	protected.HandleFunc("/ws", s.hub.ServeWS).Methods(http.MethodGet)

	return s.corsMiddleware(s.mutationGuard(r))
}
