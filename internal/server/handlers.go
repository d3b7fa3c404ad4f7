package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golddust/internal/backend"
	"golddust/internal/history"
	"golddust/internal/report"
	"golddust/internal/router"
)

// statusResponse is the body of GET /status
type statusResponse struct {
	backend.Snapshot
	Lines []string `json:"lines"`
}

// routeResponse is the body of GET /route
type routeResponse struct {
	DecisionID string `json:"decisionId"`
	report.RouteResult
}

// healthzResponse is the body of GET /healthz
type healthzResponse struct {
	Status           string     `json:"status"`
	HealthMode       string     `json:"healthMode"`
	MonitorUpdatedAt *time.Time `json:"monitorUpdatedAt,omitempty"`
}

// errorResponse is the body of every error reply
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.router.Status()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		Snapshot: snap,
		Lines:    report.StatusLines(snap),
	})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		s.writeError(w, http.StatusBadRequest, "target query parameter is required")
		return
	}

	choice, err := s.router.ChooseBackend(target)
	decision := s.history.Record(target, choice, err)

	resp := routeResponse{
		DecisionID:  decision.ID,
		RouteResult: report.NewRouteResult(target, choice, err),
	}

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, router.ErrNoBackendAvailable) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Warn().Err(err).Str("target", target).Msg("route request failed")
		s.writeJSON(w, status, resp)
		return
	}

	s.logger.Info().
		Str("target", target).
		Str("backend", choice.Backend.Name).
		Str("tier", choice.Backend.Kind.Tier()).
		Str("decision", decision.ID).
		Msg("route decided")
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	decisions := s.history.Recent()
	if decisions == nil {
		decisions = []history.Decision{}
	}
	s.writeJSON(w, http.StatusOK, decisions)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, ok := s.history.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "decision '"+id+"' not found")
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthzResponse{
		Status:     "ok",
		HealthMode: string(s.cfg.Health.Mode),
	}
	if s.monitor != nil {
		updated := s.monitor.UpdatedAt()
		resp.MonitorUpdatedAt = &updated
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug().Err(err).Msg("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
