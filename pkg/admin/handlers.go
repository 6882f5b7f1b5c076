package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bweblog/bweblog/pkg/weblog"
)

// Error codes returned in management API error bodies.
const (
	ErrCodeReporterNotFound = "ReporterNotFoundError"
	ErrCodeAlreadyEnabled   = "AlreadyEnabledError"
	ErrCodeNotEnabled       = "NotEnabledError"
	ErrCodeConfig           = "ConfigError"
	ErrCodeResource         = "ResourceError"
	ErrCodeInvalidJSON      = "InvalidJSONError"
)

// ErrorResponse is the structured error body for management calls.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusResponse maps reporter ids to their enablement.
type StatusResponse struct {
	Reporters map[string]bool `json:"reporters"`
}

// OptionsResponse carries a reporter's live configuration.
type OptionsResponse struct {
	Options map[string]any `json:"options"`
}

// HealthResponse answers the health check.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// toggleRequest is the PUT /bweb-log body.
type toggleRequest struct {
	ID      string `json:"id"`
	Enabled *bool  `json:"enabled"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, ErrorResponse{Error: errCode, Message: message})
}

// writeRegistryError maps a registry error to its client-facing 400.
func writeRegistryError(w http.ResponseWriter, err error) {
	var cfgErr *weblog.ConfigError
	var resErr *weblog.ResourceError

	switch {
	case errors.Is(err, weblog.ErrUnknownReporter):
		writeError(w, http.StatusBadRequest, ErrCodeReporterNotFound, err.Error())
	case errors.Is(err, weblog.ErrAlreadyEnabled):
		writeError(w, http.StatusBadRequest, ErrCodeAlreadyEnabled, err.Error())
	case errors.Is(err, weblog.ErrNotEnabled):
		writeError(w, http.StatusBadRequest, ErrCodeNotEnabled, err.Error())
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusBadRequest, ErrCodeConfig, err.Error())
	case errors.As(err, &resErr):
		writeError(w, http.StatusBadRequest, ErrCodeResource, err.Error())
	default:
		writeError(w, http.StatusBadRequest, ErrCodeConfig, err.Error())
	}
}

// handleHealth handles GET /healthz.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: a.Uptime().String(),
	})
}

// handleListReporters handles GET /bweb-log.
func (a *API) handleListReporters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Reporters: a.reg.Status()})
}

// handleToggleReporter handles PUT /bweb-log: enables or disables the
// reporter named in the body and answers with the updated status map.
func (a *API) handleToggleReporter(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidJSON, "invalid JSON in request body")
		return
	}
	if req.ID == "" || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidJSON, "body must carry id and enabled")
		return
	}

	var err error
	if *req.Enabled {
		err = a.reg.Enable(req.ID, nil)
	} else {
		err = a.reg.Disable(req.ID)
	}
	if err != nil {
		a.log.Warn("reporter toggle rejected", "reporter", req.ID, "enabled", *req.Enabled, "error", err)
		writeRegistryError(w, err)
		return
	}

	a.log.Info("reporter toggled", "reporter", req.ID, "enabled", *req.Enabled)
	writeJSON(w, http.StatusOK, StatusResponse{Reporters: a.reg.Status()})
}

// handleGetReporterConfig handles GET /bweb-log/{id}.
func (a *API) handleGetReporterConfig(w http.ResponseWriter, r *http.Request) {
	rep, err := a.reg.Enabled(r.PathValue("id"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OptionsResponse{Options: rep.Config()})
}

// handleSetReporterConfig handles PUT /bweb-log/{id}: validates and
// applies reporter-specific configuration, answering with the resulting
// configuration.
func (a *API) handleSetReporterConfig(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rep, err := a.reg.Enabled(id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	var cfg map[string]any
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidJSON, "invalid JSON in request body")
		return
	}

	if err := rep.SetConfig(cfg); err != nil {
		a.log.Warn("reporter config rejected", "reporter", id, "error", err)
		writeRegistryError(w, err)
		return
	}

	a.log.Info("reporter config updated", "reporter", id)
	writeJSON(w, http.StatusOK, OptionsResponse{Options: rep.Config()})
}
