package api

import (
	"net/http"

	"semsview/internal/model"
	"semsview/internal/series"
	"semsview/internal/session"
	"semsview/internal/telemetry"
)

// StateHandler serves read-only dashboard state snapshots, used by a
// client to paint the initial view before the frame stream takes over.
type StateHandler struct {
	session   *session.Controller
	charts    *series.Store
	cache     *telemetry.Cache
	transport Transport
}

// NewStateHandler creates the state handler.
func NewStateHandler(sess *session.Controller, charts *series.Store, cache *telemetry.Cache, transport Transport) *StateHandler {
	return &StateHandler{
		session:   sess,
		charts:    charts,
		cache:     cache,
		transport: transport,
	}
}

type sensorSnapshot struct {
	Text   string         `json:"text"`
	Points []series.Point `json:"points"`
}

type stateResponse struct {
	Room      string                               `json:"room"`
	Rooms     []string                             `json:"rooms"`
	Auto      bool                                 `json:"auto"`
	Connected bool                                 `json:"connected"`
	Sensors   map[model.SensorKind]sensorSnapshot  `json:"sensors"`
	Actuators map[model.Device]model.ActuatorState `json:"actuators"`
}

// State returns the full view of the active room: readouts, chart
// series, actuator positions, mode and broker connectivity.
func (h *StateHandler) State(w http.ResponseWriter, r *http.Request) {
	room := h.session.CurrentRoom()

	sensors := make(map[model.SensorKind]sensorSnapshot, len(model.SensorKinds()))
	for _, kind := range model.SensorKinds() {
		text := telemetry.NoData
		if v, ok := h.cache.Get(room, kind); ok {
			text = telemetry.FormatValue(kind, v)
		}
		sensors[kind] = sensorSnapshot{
			Text:   text,
			Points: h.charts.Snapshot(room, kind),
		}
	}

	actuators := make(map[model.Device]model.ActuatorState, len(model.Devices()))
	for _, device := range model.Devices() {
		actuators[device] = h.session.ActuatorState(room, device)
	}

	connected := false
	if h.transport != nil {
		connected = h.transport.IsConnected()
	}

	writeJSON(w, http.StatusOK, stateResponse{
		Room:      room,
		Rooms:     h.session.Rooms(),
		Auto:      h.session.AutoMode(),
		Connected: connected,
		Sensors:   sensors,
		Actuators: actuators,
	})
}

// Rooms lists the configured rooms and marks the active one.
func (h *StateHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rooms":  h.session.Rooms(),
		"active": h.session.CurrentRoom(),
	})
}
