package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/electronicsideas/aircore/internal/auth"
	"github.com/electronicsideas/aircore/internal/device"
)

// apiCredentialBytes is the number of random bytes in a generated device password.
const apiCredentialBytes = 16

// History query bounds (hours).
const (
	defaultHistoryHours = 24
	maxHistoryHours     = 24 * 365
)

// createDeviceRequest is the request body for POST /api/devices.
type createDeviceRequest struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// createDeviceResponse carries the generated credentials. The plaintext
// password is shown exactly once; only its hash is stored.
type createDeviceResponse struct {
	Device      *device.Device `json:"device"`
	APIUsername string         `json:"api_username"`
	APIPassword string         `json:"api_password"`
}

// updateDeviceRequest is the request body for PATCH /api/devices/{id}.
type updateDeviceRequest struct {
	Name     *string `json:"name,omitempty"`
	Location *string `json:"location,omitempty"`
}

// deviceStatusResponse combines the stored snapshot with live liveness.
type deviceStatusResponse struct {
	device.CurrentStatus
	IsOnline bool `json:"is_online"`
}

// handleListDevices returns all registered devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		s.logger.Error("list devices failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleCreateDevice registers a device and generates its API credentials.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if !device.IsValidDeviceID(req.DeviceID) {
		writeValidationError(w, "device_id must be 1-64 characters: letters, digits, dots, colons, hyphens, underscores")
		return
	}
	if req.Name == "" {
		req.Name = req.DeviceID
	}

	password, err := auth.GenerateSecret(apiCredentialBytes)
	if err != nil {
		s.logger.Error("credential generation failed", "error", err)
		writeInternalError(w, "failed to generate credentials")
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Error("credential hashing failed", "error", err)
		writeInternalError(w, "failed to generate credentials")
		return
	}

	dev := &device.Device{
		ID:              req.DeviceID,
		Name:            req.Name,
		Location:        req.Location,
		APIUsername:     "dev-" + req.DeviceID,
		APIPasswordHash: hash,
	}

	if err := s.devices.Create(r.Context(), dev); err != nil {
		if errors.Is(err, device.ErrDeviceExists) {
			writeConflict(w, "device already exists")
			return
		}
		s.logger.Error("create device failed", "error", err)
		writeInternalError(w, "failed to create device")
		return
	}

	writeJSON(w, http.StatusCreated, createDeviceResponse{
		Device:      dev,
		APIUsername: dev.APIUsername,
		APIPassword: password,
	})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("get device failed", "error", err)
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleUpdateDevice updates a device's name or location.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("get device failed", "error", err)
		writeInternalError(w, "failed to get device")
		return
	}

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Name != nil {
		dev.Name = *req.Name
	}
	if req.Location != nil {
		dev.Location = *req.Location
	}

	if err := s.devices.Update(r.Context(), dev); err != nil {
		s.logger.Error("update device failed", "error", err)
		writeInternalError(w, "failed to update device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a device and its status, queue, and settings rows.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.devices.Delete(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("delete device failed", "error", err)
		writeInternalError(w, "failed to delete device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleDeviceStatus returns the current status snapshot plus live liveness.
//
// The stored online flag and the computed is_online can disagree between
// the 2-minute liveness window and the 5-minute sweep; is_online is the
// authoritative answer for dashboards.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	st, err := s.status.GetByDevice(ctx, id)
	if err != nil {
		if errors.Is(err, device.ErrStatusNotFound) {
			writeNotFound(w, "device has never reported")
			return
		}
		s.logger.Error("get status failed", "error", err)
		writeInternalError(w, "failed to get status")
		return
	}

	online, err := s.monitor.IsOnline(ctx, id)
	if err != nil {
		s.logger.Error("liveness check failed", "error", err)
		writeInternalError(w, "failed to get status")
		return
	}

	writeJSON(w, http.StatusOK, deviceStatusResponse{CurrentStatus: *st, IsOnline: online})
}

// handleDeviceHistory returns recent readings for a device, newest first.
//
// Query parameters:
//   - hours: lookback window (default 24)
//   - limit: maximum rows (default 100, max 1000)
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	hours, ok := queryHours(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeValidationError(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	readings, err := s.readings.ListSince(r.Context(), id, since, limit)
	if err != nil {
		s.logger.Error("list history failed", "error", err)
		writeInternalError(w, "failed to list history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"hours":     hours,
		"readings":  readings,
		"count":     len(readings),
	})
}

// handleDeviceStats returns aggregate reading statistics for a device.
func (s *Server) handleDeviceStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	hours, ok := queryHours(w, r)
	if !ok {
		return
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	stats, err := s.readings.StatsSince(r.Context(), id, since)
	if err != nil {
		s.logger.Error("stats query failed", "error", err)
		writeInternalError(w, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"hours":     hours,
		"stats":     stats,
	})
}

// settingsResponse is the body for GET/PUT /api/devices/{id}/settings.
type settingsResponse struct {
	DeviceID  string `json:"device_id"`
	Threshold int    `json:"threshold"`
}

// handleGetSettings returns the device's auto-mode threshold.
// Devices without a stored setting report the default.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	threshold, err := s.settings.GetThreshold(r.Context(), id)
	if err != nil {
		s.logger.Error("get settings failed", "error", err)
		writeInternalError(w, "failed to get settings")
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{DeviceID: id, Threshold: threshold})
}

// handlePutSettings stores the device's auto-mode threshold.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Threshold int `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.settings.SetThreshold(r.Context(), id, req.Threshold); err != nil {
		if errors.Is(err, device.ErrInvalidThreshold) {
			writeValidationError(w, "threshold must be between 100 and 2000")
			return
		}
		s.logger.Error("set settings failed", "error", err)
		writeInternalError(w, "failed to store settings")
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{DeviceID: id, Threshold: req.Threshold})
}

// queryHours parses the hours query parameter, writing a validation error
// and returning ok=false on bad input.
func queryHours(w http.ResponseWriter, r *http.Request) (int, bool) {
	hours := defaultHistoryHours
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryHours {
			writeValidationError(w, "hours must be between 1 and 8760")
			return 0, false
		}
		hours = n
	}
	return hours, true
}
