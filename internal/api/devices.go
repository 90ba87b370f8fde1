package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/meshsim/internal/device"
	"github.com/nerrad567/meshsim/internal/message"
)

// deviceView is the JSON form of a registered device.
type deviceView struct {
	ID         int            `json:"id"`
	Address    string         `json:"address"`
	Mode       device.Mode    `json:"mode"`
	Status     message.Status `json:"status"`
	Neighbours []int          `json:"neighbours,omitempty"`
}

func viewOf(d device.Device) deviceView {
	return deviceView{
		ID:      d.ID(),
		Address: d.Address(),
		Mode:    d.Mode(),
		Status:  d.Status(),
	}
}

func idsOf(devices []device.Device) []int {
	ids := make([]int, len(devices))
	for i, d := range devices {
		ids[i] = d.ID()
	}
	return ids
}

// deviceIDParam parses the {id} URL parameter.
func deviceIDParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		return 0, errors.New("invalid device ID")
	}
	return id, nil
}

// handleListDevices returns all devices in registration order.
//
// Query parameters:
//   - mode: filter by mode (remote, lightweight, stub)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var filter *device.Mode
	if v := r.URL.Query().Get("mode"); v != "" {
		mode, err := device.ParseMode(v)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		filter = &mode
	}

	views := []deviceView{}
	for _, d := range s.registry.Devices() {
		if filter != nil && d.Mode() != *filter {
			continue
		}
		views = append(views, viewOf(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleGetDevice returns a single device. After Finalize the view includes
// its neighbour IDs.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	d, err := s.registry.Device(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view := viewOf(d)
	if s.registry.Finalized() {
		neighbours, err := s.registry.Neighbours(id, false)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		view.Neighbours = idsOf(neighbours)
	}
	writeJSON(w, http.StatusOK, view)
}

// handleNeighbours returns the neighbours of a device.
//
// Query parameters:
//   - self: "true" includes the device itself
//
// An unknown ID yields an empty list, matching Registry.Neighbours.
func (s *Server) handleNeighbours(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	includeSelf := false
	if v := r.URL.Query().Get("self"); v != "" {
		includeSelf, err = strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "self must be a boolean")
			return
		}
	}

	neighbours, err := s.registry.Neighbours(id, includeSelf)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]deviceView, len(neighbours))
	for i, d := range neighbours {
		views[i] = viewOf(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":  id,
		"neighbours": views,
		"count":      len(views),
	})
}

// handleSetStatus replaces a device's status with the JSON object in the body.
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var status message.Status
	if err := json.NewDecoder(r.Body).Decode(&status); err != nil || status == nil {
		writeBadRequest(w, "body must be a JSON object")
		return
	}

	if err := s.network.SetStatus(r.Context(), id, status, device.StatusSourceAPI); err != nil {
		writeDomainError(w, err)
		return
	}
	s.logger.Info("status overridden", "device", id, "subject", subjectFrom(r.Context()))

	d, err := s.registry.Device(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(d))
}

// handleGoLightweight switches a remote device to local execution.
func (s *Server) handleGoLightweight(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	d, err := s.network.GoLightweight(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(d))
}

// handleLeaveLightweight hands a lightweight device back to its remote.
func (s *Server) handleLeaveLightweight(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	d, err := s.network.LeaveLightweight(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(d))
}

// handleExecute runs one execution step on a device.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.network.Execute(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"device_id": id, "status": "executed"})
}
