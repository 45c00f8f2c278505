package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lanpulse/lanpulse/internal/device"
)

// handleListDevices returns all registered devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.repo.List(r.Context())
	if err != nil {
		s.logger.Error("listing devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a single device by MAC address.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	mac, err := device.NormalizeMAC(chi.URLParam(r, "mac"))
	if err != nil {
		writeBadRequest(w, "invalid mac address")
		return
	}

	dev, err := s.repo.GetByMAC(r.Context(), mac)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("fetching device", "mac", mac, "error", err)
		writeInternalError(w, "failed to fetch device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// updateDeviceRequest is the body for PUT /api/devices/{mac}.
// Absent fields are left unchanged; an empty name clears the stored name.
type updateDeviceRequest struct {
	Name   *string `json:"name"`
	Notify *bool   `json:"notify"`
}

// handleUpdateDevice applies a partial name/notify update. A MAC not yet in
// the registry is created, so devices can be pre-registered before their
// first lease.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	mac, err := device.NormalizeMAC(chi.URLParam(r, "mac"))
	if err != nil {
		writeBadRequest(w, "invalid mac address")
		return
	}

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if req.Name == nil && req.Notify == nil {
		writeBadRequest(w, "nothing to update")
		return
	}

	dev, err := s.repo.UpdateSettings(r.Context(), mac, req.Name, req.Notify)
	if err != nil {
		s.logger.Error("updating device", "mac", mac, "error", err)
		writeInternalError(w, "failed to update device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}
