// Package api exposes the guards over HTTP: current state, turn-on/turn-off requests, the
// enable/disable flag and the runtime-editable settings (run limit, cooldown, gates).
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/clambin/climate-guard/internal/guard"
)

// Guards provides access to the supervised devices. Implemented by guard.Manager.
type Guards interface {
	Guard(name string) (*guard.Guard, bool)
	Snapshots() []guard.Snapshot
}

// Server handles the climate-guard REST API.
type Server struct {
	guards Guards
	logger *slog.Logger
}

// New returns a Server for the given guards.
func New(guards Guards, logger *slog.Logger) *Server {
	return &Server{guards: guards, logger: logger}
}

// AddRoutes registers the API's routes on the given mux.
func (s *Server) AddRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/devices", s.list)
	mux.HandleFunc("GET /api/devices/{device}", s.device)
	mux.HandleFunc("POST /api/devices/{device}/on", s.turnOn)
	mux.HandleFunc("POST /api/devices/{device}/off", s.turnOff)
	mux.HandleFunc("POST /api/devices/{device}/enabled", s.setEnabled)
	mux.HandleFunc("GET /api/devices/{device}/settings", s.settings)
	mux.HandleFunc("PUT /api/devices/{device}/settings", s.setSettings)
}

func (s *Server) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.guards.Snapshots())
}

func (s *Server) device(w http.ResponseWriter, r *http.Request) {
	g, ok := s.guards.Guard(r.PathValue("device"))
	if !ok {
		http.Error(w, "no such device", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, g.Snapshot())
}

func (s *Server) turnOn(w http.ResponseWriter, r *http.Request) {
	g, ok := s.guards.Guard(r.PathValue("device"))
	if !ok {
		http.Error(w, "no such device", http.StatusNotFound)
		return
	}
	if err := g.RequestOn(r.Context()); err != nil {
		if reason, denied := guard.Denied(err); denied {
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Reason: reason.String()})
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, g.Snapshot())
}

func (s *Server) turnOff(w http.ResponseWriter, r *http.Request) {
	g, ok := s.guards.Guard(r.PathValue("device"))
	if !ok {
		http.Error(w, "no such device", http.StatusNotFound)
		return
	}
	if err := g.RequestOff(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, g.Snapshot())
}

func (s *Server) setEnabled(w http.ResponseWriter, r *http.Request) {
	g, ok := s.guards.Guard(r.PathValue("device"))
	if !ok {
		http.Error(w, "no such device", http.StatusNotFound)
		return
	}
	var request struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := g.SetEnabled(r.Context(), request.Enabled); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, g.Snapshot())
}

func (s *Server) settings(w http.ResponseWriter, r *http.Request) {
	g, ok := s.guards.Guard(r.PathValue("device"))
	if !ok {
		http.Error(w, "no such device", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, g.Settings())
}

// setSettings applies the runtime-editable settings. Fields left out of the request are left
// unchanged. Durations are expressed in minutes, matching the dashboard's number controls.
// The update is all-or-nothing: an invalid field rejects the whole request.
func (s *Server) setSettings(w http.ResponseWriter, r *http.Request) {
	g, ok := s.guards.Guard(r.PathValue("device"))
	if !ok {
		http.Error(w, "no such device", http.StatusNotFound)
		return
	}
	var request struct {
		RunLimitMinutes *float64 `json:"runLimitMinutes"`
		CooldownMinutes *float64 `json:"cooldownMinutes"`
		SunRequired     *bool    `json:"sunRequired"`
		AllowedWeather  []string `json:"allowedWeather"`
		ClimateEntity   *string  `json:"climateEntity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	update := guard.SettingsUpdate{
		SunRequired:    request.SunRequired,
		AllowedWeather: request.AllowedWeather,
		ClimateEntity:  request.ClimateEntity,
	}
	if request.RunLimitMinutes != nil {
		limit := time.Duration(*request.RunLimitMinutes * float64(time.Minute))
		update.RunLimit = &limit
	}
	if request.CooldownMinutes != nil {
		cooldown := time.Duration(*request.CooldownMinutes * float64(time.Minute))
		update.Cooldown = &cooldown
	}
	if err := g.Config.Set(update); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, guard.ErrInvalidSetting) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, g.Settings())
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
