package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/farlink-core/internal/auth"
	"github.com/nerrad567/farlink-core/internal/device"
)

// registerRequest is the payload for POST /devices/register.
type registerRequest struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// handleRegisterDevice upserts a device record. Registration is
// idempotent: repeats preserve firstSeen and bump the connection count.
// A device authenticating with its API key may only register itself.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ID == "" {
		writeBadRequest(w, "id is required")
		return
	}

	identity, _ := identityFrom(r.Context())
	if identity.Role == auth.RoleDevice && identity.ID != req.ID {
		writeError(w, http.StatusForbidden, ErrCodeForbidden,
			"device key does not authenticate this identity")
		return
	}

	d, err := s.registry.Register(r.Context(), req.ID, device.RegisterAttrs{
		Name:     req.Name,
		Metadata: req.Metadata,
	})
	if err != nil {
		if errors.Is(err, device.ErrInvalidIdentity) {
			writeBadRequest(w, "invalid device identity")
			return
		}
		s.logger.Error("device registration failed", "device_id", req.ID, "error", err)
		writeInternalError(w, "failed to register device")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleListDevices returns all devices, optionally filtered by status.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, filtered, err := statusFromQuery(r)
	if err != nil {
		writeBadRequest(w, "invalid status filter")
		return
	}

	var devices []device.Device
	if filtered {
		devices, err = s.registry.ListByStatus(ctx, status)
	} else {
		devices, err = s.registry.List(ctx)
	}
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by identity.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.registry.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// setStatusRequest is the payload for PUT /devices/{id}/status.
type setStatusRequest struct {
	Status device.Status `json:"status"`
}

// handleSetDeviceStatus forces a device's status. Setting the current
// status is a no-op that leaves lastStatusChange untouched.
func (s *Server) handleSetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	d, err := s.registry.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, device.ErrInvalidStatus):
			writeBadRequest(w, "invalid status")
		default:
			s.logger.Error("status update failed", "device_id", id, "error", err)
			writeInternalError(w, "failed to update status")
		}
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// connectResponse is the payload returned by POST /devices/{id}/connect.
// The client echoes requestId into its remote-control-request envelope so
// the device can correlate the session.
type connectResponse struct {
	RequestID string        `json:"requestId"`
	DeviceID  string        `json:"deviceId"`
	Status    device.Status `json:"status"`
	Connected bool          `json:"connected"`
	Timestamp string        `json:"timestamp"`
}

// handleConnectRequest issues a remote-control request ID for a device.
func (s *Server) handleConnectRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.registry.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to look up device")
		return
	}

	_, connected := s.conns.Lookup(auth.RoleDevice, id)

	writeJSON(w, http.StatusOK, connectResponse{
		RequestID: uuid.NewString(),
		DeviceID:  d.ID,
		Status:    d.Status,
		Connected: connected,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
