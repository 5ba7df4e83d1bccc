package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/micro-ha/netduma-telemetry/internal/poller"
	"github.com/micro-ha/netduma-telemetry/internal/service"
	"github.com/micro-ha/netduma-telemetry/internal/storage"
)

type API struct {
	service *service.Service
	poller  *poller.Poller
	logger  *slog.Logger
}

func New(svc *service.Service, p *poller.Poller, logger *slog.Logger) *API {
	return &API{service: svc, poller: p, logger: logger}
}

func (a *API) Logger() *slog.Logger {
	return a.logger
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"primed":       a.poller.Primed(),
		"cadences":     a.poller.Status(),
		"refreshed_at": a.service.SectionRefreshedAt(),
	})
}

func (a *API) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.Snapshot())
}

func (a *API) Presence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.Snapshot().Presence)
}

func (a *API) Traffic(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.Snapshot().Traffic)
}

func (a *API) System(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.Snapshot().System)
}

func (a *API) ListDevices(w http.ResponseWriter, r *http.Request) {
	views, err := a.service.DeviceViews(r.Context())
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) GetDevice(w http.ResponseWriter, r *http.Request, id string) {
	view, err := a.service.DeviceView(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "unknown device id")
		return
	}
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) PatchDevice(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Name    *string `json:"name"`
		Icon    *string `json:"icon"`
		Comment *string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}
	if body.Name == nil && body.Icon == nil && body.Comment == nil {
		writeError(w, http.StatusBadRequest, "empty_patch", "at least one of name, icon, comment is required")
		return
	}
	err := a.service.PatchDevice(r.Context(), id, body.Name, body.Icon, body.Comment)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "unknown device id")
		return
	}
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	view, err := a.service.DeviceView(r.Context(), id)
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteDevice clears the registry overrides for a device; the live
// entry itself comes from the router and is not deletable here.
func (a *API) DeleteDevice(w http.ResponseWriter, r *http.Request, id string) {
	err := a.service.ForgetDevice(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "no registry entry for device id")
		return
	}
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) Leases(w http.ResponseWriter, r *http.Request) {
	leases, err := a.service.Leases(r.Context())
	if errors.Is(err, service.ErrIntegrationNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "not_configured", "integration not configured")
		return
	}
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	if leases == nil {
		leases = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, leases)
}

func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	a.poller.TriggerRefresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

func (a *API) serverError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error("request failed", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}
