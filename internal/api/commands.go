package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/electronicsideas/aircore/internal/command"
	"github.com/electronicsideas/aircore/internal/device"
)

// enqueueCommandRequest is the request body for POST /api/devices/{id}/commands.
type enqueueCommandRequest struct {
	Command string `json:"command"`
	Value   string `json:"value"`
}

// setCommandStatusRequest is the request body for PATCH /api/commands/{id}.
type setCommandStatusRequest struct {
	Status command.Status `json:"status"`
}

// handleEnqueueCommand queues a command for a device.
func (s *Server) handleEnqueueCommand(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	ctx := r.Context()

	if _, err := s.devices.GetByID(ctx, deviceID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("device lookup failed", "error", err)
		writeInternalError(w, "failed to queue command")
		return
	}

	var req enqueueCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id, err := s.queue.Enqueue(ctx, deviceID, req.Command, req.Value)
	if err != nil {
		if errors.Is(err, command.ErrInvalidCommand) || errors.Is(err, command.ErrInvalidValue) {
			writeValidationError(w, err.Error())
			return
		}
		s.logger.Error("enqueue failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to queue command")
		return
	}

	cmd, err := s.queue.Get(ctx, id)
	if err != nil {
		s.logger.Error("command readback failed", "id", id, "error", err)
		writeInternalError(w, "failed to queue command")
		return
	}

	writeJSON(w, http.StatusCreated, cmd)
}

// handleListCommands returns a device's commands, optionally filtered by status.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	filter := command.Status(r.URL.Query().Get("status"))
	commands, err := s.queue.ListByDevice(r.Context(), deviceID, filter)
	if err != nil {
		if errors.Is(err, command.ErrInvalidStatus) {
			writeValidationError(w, "status must be pending, processing, completed, or failed")
			return
		}
		s.logger.Error("list commands failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"commands":  commands,
		"count":     len(commands),
	})
}

// handleSetCommandStatus advances a command's lifecycle state.
//
// Called by purifier firmware (Basic auth) to acknowledge execution, and by
// dashboards (JWT) to fail stuck commands. Transitions are forward-only and
// terminal states set processed_at.
func (s *Server) handleSetCommandStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "command id must be an integer")
		return
	}
	ctx := r.Context()

	var req setCommandStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// Devices may only acknowledge their own commands.
	if deviceID := deviceIDFromContext(ctx); deviceID != "" {
		cmd, err := s.queue.Get(ctx, id)
		if err != nil {
			if errors.Is(err, command.ErrCommandNotFound) {
				writeNotFound(w, "command not found")
				return
			}
			s.logger.Error("command lookup failed", "id", id, "error", err)
			writeInternalError(w, "failed to update command")
			return
		}
		if cmd.DeviceID != deviceID {
			writeForbidden(w, "command belongs to another device")
			return
		}
	}

	if err := s.queue.SetStatus(ctx, id, req.Status); err != nil {
		switch {
		case errors.Is(err, command.ErrCommandNotFound):
			writeNotFound(w, "command not found")
		case errors.Is(err, command.ErrInvalidStatus):
			writeValidationError(w, "status must be pending, processing, completed, or failed")
		case errors.Is(err, command.ErrInvalidTransition):
			writeConflict(w, err.Error())
		default:
			s.logger.Error("set command status failed", "id", id, "error", err)
			writeInternalError(w, "failed to update command")
		}
		return
	}

	cmd, err := s.queue.Get(ctx, id)
	if err != nil {
		s.logger.Error("command readback failed", "id", id, "error", err)
		writeInternalError(w, "failed to update command")
		return
	}

	writeJSON(w, http.StatusOK, cmd)
}
