package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"semsview/internal/control"
	"semsview/internal/model"
	"semsview/internal/session"
)

// ControlHandler accepts user gestures: room selection, device
// toggles and sliders, and the global mode switch. Gestures go
// through the command pipeline, so auto-mode gating and debouncing
// apply the same way regardless of which client sent them.
type ControlHandler struct {
	session  *session.Controller
	pipeline *control.Pipeline
}

// NewControlHandler creates the gesture handler.
func NewControlHandler(sess *session.Controller, pipeline *control.Pipeline) *ControlHandler {
	return &ControlHandler{session: sess, pipeline: pipeline}
}

type roomRequest struct {
	Room string `json:"room"`
}

// SwitchRoom makes the requested room the active one.
func (h *ControlHandler) SwitchRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.session.SwitchRoom(req.Room); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"room": req.Room})
}

type toggleRequest struct {
	On    bool `json:"on"`
	Level int  `json:"level"`
}

// Toggle flips a device on or off. Level carries the paired slider's
// current value so switching on restores it.
func (h *ControlHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	device, ok := deviceParam(w, r)
	if !ok {
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Level < 0 || req.Level > 100 {
		writeError(w, http.StatusBadRequest, "level must be between 0 and 100")
		return
	}

	if err := h.pipeline.HandleToggle(device, req.On, req.Level); err != nil {
		if errors.Is(err, control.ErrAutoMode) {
			writeError(w, http.StatusConflict, control.AutoModeAlert)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type levelRequest struct {
	Level int `json:"level"`
}

// Level adjusts a device's intensity. The command is debounced; the
// accepted response means the gesture was taken, not that a command
// has been published yet.
func (h *ControlHandler) Level(w http.ResponseWriter, r *http.Request) {
	device, ok := deviceParam(w, r)
	if !ok {
		return
	}

	var req levelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Level < 0 || req.Level > 100 {
		writeError(w, http.StatusBadRequest, "level must be between 0 and 100")
		return
	}

	if err := h.pipeline.HandleSlider(device, req.Level); err != nil {
		if errors.Is(err, control.ErrAutoMode) {
			writeError(w, http.StatusConflict, control.AutoModeAlert)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type modeRequest struct {
	Auto bool `json:"auto"`
}

// Mode flips the global auto/manual switch.
func (h *ControlHandler) Mode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.pipeline.HandleModeChange(req.Auto)
	writeJSON(w, http.StatusOK, map[string]bool{"auto": req.Auto})
}

// deviceParam resolves the {device} URL parameter, rejecting unknown
// devices.
func deviceParam(w http.ResponseWriter, r *http.Request) (model.Device, bool) {
	device := model.Device(chi.URLParam(r, "device"))
	if !model.KnownDevice(device) {
		writeError(w, http.StatusNotFound, "unknown device")
		return "", false
	}
	return device, true
}
