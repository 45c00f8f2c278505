package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lanpulse/lanpulse/internal/device"
)

// handleGetManufacturer returns the manufacturer label for a MAC.
//
// Resolved devices answer from the registry. Unresolved but eligible
// devices get a background lookup scheduled and answer with a placeholder;
// the caller polls again later.
func (s *Server) handleGetManufacturer(w http.ResponseWriter, r *http.Request) {
	mac, err := device.NormalizeMAC(chi.URLParam(r, "mac"))
	if err != nil {
		writeBadRequest(w, "invalid mac address")
		return
	}

	label, err := s.lookups.Manufacturer(r.Context(), mac)
	if err != nil {
		s.logger.Error("querying manufacturer", "mac", mac, "error", err)
		writeInternalError(w, "failed to query manufacturer")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"mac":          mac,
		"manufacturer": label,
	})
}

// handleRetryFailed resets every failed or unknown lookup back to pending.
// The affected devices are re-attempted lazily on their next query.
func (s *Server) handleRetryFailed(w http.ResponseWriter, r *http.Request) {
	count, err := s.lookups.RetryFailed(r.Context())
	if err != nil {
		s.logger.Error("resetting failed lookups", "error", err)
		writeInternalError(w, "failed to reset lookups")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reset": count,
	})
}

// handleRetryDevice force-resets one device's lookup state and immediately
// schedules a fresh attempt.
func (s *Server) handleRetryDevice(w http.ResponseWriter, r *http.Request) {
	mac, err := device.NormalizeMAC(chi.URLParam(r, "mac"))
	if err != nil {
		writeBadRequest(w, "invalid mac address")
		return
	}

	if err := s.lookups.RetryDevice(r.Context(), mac); err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("retrying lookup", "mac", mac, "error", err)
		writeInternalError(w, "failed to retry lookup")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"mac":    mac,
		"status": "scheduled",
	})
}
