package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/electronicsideas/aircore/internal/device"
)

// ingestRequest is the payload purifier firmware posts to /api/readings.
type ingestRequest struct {
	DeviceID string `json:"device_id"`
	device.ReadingInput
}

// ingestResponse acknowledges a stored reading and piggybacks the pending
// command queue so the device can act without a second round trip.
type ingestResponse struct {
	Status          string `json:"status"`
	DeviceID        string `json:"device_id"`
	PendingCommands any    `json:"pending_commands"`
	Count           int    `json:"count"`
}

// handleIngest stores a reading pushed by a purifier.
//
// Registered devices must authenticate with their generated Basic
// credentials. Devices that have never been registered are auto-provisioned
// from their first reading; they have no credentials yet, so their posts
// are accepted bare until an admin registers them.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if !device.IsValidDeviceID(req.DeviceID) {
		writeValidationError(w, "device_id must be 1-64 characters: letters, digits, dots, colons, hyphens, underscores")
		return
	}

	// Enforce credentials for devices that have them.
	dev, err := s.devices.GetByID(ctx, req.DeviceID)
	if err != nil && !errors.Is(err, device.ErrDeviceNotFound) {
		s.logger.Error("ingest device lookup failed", "error", err)
		writeInternalError(w, "failed to store reading")
		return
	}
	if dev != nil && dev.APIPasswordHash != "" {
		username, password, ok := r.BasicAuth()
		if !ok {
			writeUnauthorized(w, "device credentials required")
			return
		}
		sender, authErr := s.authenticateDevice(ctx, username, password)
		if authErr != nil || sender.ID != dev.ID {
			writeUnauthorized(w, "invalid device credentials")
			return
		}
	}

	status, err := s.ingestor.Ingest(ctx, req.DeviceID, req.ReadingInput, clientIP(r))
	if err != nil {
		if errors.Is(err, device.ErrInvalidReading) || errors.Is(err, device.ErrInvalidDeviceID) {
			writeValidationError(w, err.Error())
			return
		}
		s.logger.Error("ingest failed", "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "failed to store reading")
		return
	}

	// At-least-once drain: commands stay pending until acknowledged via
	// PATCH /api/commands/{id}.
	pending, err := s.queue.Pending(ctx, status.DeviceID)
	if err != nil {
		s.logger.Error("pending command fetch failed", "device_id", status.DeviceID, "error", err)
		writeInternalError(w, "failed to fetch pending commands")
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Status:          "ok",
		DeviceID:        status.DeviceID,
		PendingCommands: pending,
		Count:           len(pending),
	})
}

// clientIP extracts the remote IP, preferring X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
