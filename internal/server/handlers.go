package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/guardian-ibera/firewatch/internal/gateway"
	"github.com/guardian-ibera/firewatch/internal/model"
	"github.com/guardian-ibera/firewatch/internal/panel"
	"github.com/guardian-ibera/firewatch/internal/report"
	"github.com/guardian-ibera/firewatch/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

// gatewayStatus maps a classified failure onto the status returned to the UI.
func gatewayStatus(err error) int {
	switch gateway.KindOf(err) {
	case gateway.KindUnauthorized:
		return http.StatusUnauthorized
	case gateway.KindValidation:
		return http.StatusUnprocessableEntity
	case gateway.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"session":    s.session.Snapshot().State,
		"ws_clients": s.hub.Clients(),
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

// handleLoginEntry is where the guard sends unauthenticated requests.
func (s *Server) handleLoginEntry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"session": s.session.Snapshot(),
		"login":   "POST " + LoginPath,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	err := s.session.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.session.Snapshot())
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "incorrect email or password")
	default:
		writeError(w, gatewayStatus(err), gateway.Describe(err))
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.session.Logout(r.Context())
	s.flow.Reset()
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.Registration
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	user, err := s.registrar.Register(r.Context(), req)
	if err != nil {
		writeError(w, gatewayStatus(err), gateway.Describe(err))
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// handleDashboard mounts the panels on first visit and returns their states.
// Per-panel failures are part of the returned states.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if !s.dashboard.Mounted() {
		if err := s.dashboard.Mount(r.Context()); err != nil {
			slog.Warn("dashboard mounted with failures", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, s.dashboard.Snapshot())
}

// panelResult writes the panel state after a fetch. Client-side rejections
// are 400s; remote failures are already reflected in the state.
func panelResult[T any](w http.ResponseWriter, err error, clientErrs []error, st panel.State[T]) {
	for _, ce := range clientErrs {
		if errors.Is(err, ce) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleFires(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Days int `json:"days"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.dashboard.Fires.SetDays(r.Context(), req.Days)
	panelResult(w, err, []error{panel.ErrDaysOutOfRange}, s.dashboard.Fires.State())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hours int `json:"hours"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.dashboard.Alerts.SetHours(r.Context(), req.Hours)
	panelResult(w, err, []error{panel.ErrNegativeLookback}, s.dashboard.Alerts.State())
}

type rangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rng, err := panel.ParseRange(req.StartDate, req.EndDate)
	if err == nil {
		err = s.dashboard.Historical.Submit(r.Context(), rng)
	}
	panelResult(w, err, []error{panel.ErrInvalidRange}, s.dashboard.Historical.State())
}

func (s *Server) handleVegetation(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rng, err := panel.ParseRange(req.StartDate, req.EndDate)
	if err == nil {
		err = s.dashboard.Vegetation.Submit(r.Context(), rng)
	}
	panelResult(w, err, []error{panel.ErrInvalidRange}, s.dashboard.Vegetation.State())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.flow.State())
}

func (s *Server) handleReportPoint(w http.ResponseWriter, r *http.Request) {
	var req model.Coordinate
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.flow.SelectPoint(req.Lat, req.Lon); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.flow.State())
}

func (s *Server) handleReportDescription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.flow.SetDescription(req.Description); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.flow.State())
}

// handleReportSubmit returns the flow state. Rejected and failed submissions
// leave the draft in place for correction.
func (s *Server) handleReportSubmit(w http.ResponseWriter, r *http.Request) {
	_, err := s.flow.Submit(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, s.flow.State())
	case errors.Is(err, report.ErrSubmitDisabled), errors.Is(err, report.ErrSubmitting):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, report.ErrInvalidCoordinate):
		writeJSON(w, http.StatusBadRequest, s.flow.State())
	default:
		writeJSON(w, gatewayStatus(err), s.flow.State())
	}
}
