package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bluewidget/bluewidget/internal/coordinator"
	"github.com/bluewidget/bluewidget/internal/device"
	"github.com/bluewidget/bluewidget/internal/launcher"
)

// devicesResponse is the body of GET /devices and the devices.updated event.
type devicesResponse struct {
	Seq     uint64          `json:"seq"`
	Devices []device.Record `json:"devices"`
}

// powerRequest is the body of PUT /adapter/power.
type powerRequest struct {
	Powered *bool `json:"powered"`
}

// acceptedResponse is returned for queued work.
type acceptedResponse struct {
	Status   string `json:"status"`
	Op       string `json:"op"`
	DeviceID string `json:"device_id,omitempty"`
}

// handleListDevices returns the last delivered device list. Before the
// first enumeration completes the list is empty and pending is true.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	seq, records, received := s.snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"seq":     seq,
		"devices": records,
		"pending": !received,
	})
}

// handleRefresh requests a coalesced enumeration.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.controller.Refresh()
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", Op: string(coordinator.OpList)})
}

// handleDeviceCommand queues connect, disconnect, or pair for one device.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	kind, err := device.ParseCommandKind(chi.URLParam(r, "command"))
	if err != nil {
		writeNotFound(w, err.Error())
		return
	}
	id, err := device.NormaliseID(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.controller.Command(kind, id); err != nil {
		s.writeSubmitError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", Op: string(kind), DeviceID: id})
}

// handleGetPower queries the adapter synchronously.
func (s *Server) handleGetPower(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"powered": s.controller.CurrentPowerState(r.Context()),
	})
}

// handleSetPower queues an adapter power change.
func (s *Server) handleSetPower(w http.ResponseWriter, r *http.Request) {
	var req powerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Powered == nil {
		writeBadRequest(w, `"powered" is required`)
		return
	}

	if err := s.controller.TogglePower(*req.Powered); err != nil {
		s.writeSubmitError(w, err)
		return
	}

	op := coordinator.OpPowerOff
	if *req.Powered {
		op = coordinator.OpPowerOn
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", Op: string(op)})
}

// handleLaunchSettings opens the external Bluetooth manager.
func (s *Server) handleLaunchSettings(w http.ResponseWriter, r *http.Request) {
	if s.launcher == nil {
		writeUnavailable(w, "settings launcher not configured")
		return
	}

	name, err := s.launcher.Launch(r.Context())
	if err != nil {
		if errors.Is(err, launcher.ErrNoManager) {
			writeNotFound(w, "no bluetooth manager installed")
			return
		}
		// ErrLaunchFailed and anything unexpected.
		s.logger.Error("launching bluetooth manager failed", "error", err)
		writeInternalError(w, "failed to launch bluetooth manager")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"launched": name})
}

// writeSubmitError maps coordinator submission errors to responses.
func (s *Server) writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coordinator.ErrQueueFull):
		writeUnavailable(w, "command queue full, try again")
	case errors.Is(err, coordinator.ErrClosed):
		writeUnavailable(w, "service shutting down")
	case errors.Is(err, device.ErrUnknownCommand), errors.Is(err, device.ErrInvalidID):
		writeBadRequest(w, err.Error())
	default:
		s.logger.Error("command submission failed", "error", err)
		writeInternalError(w, "failed to queue command")
	}
}
