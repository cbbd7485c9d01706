// Package ws pushes dashboard updates to attached browsers over
// websockets. The hub is the process's display surface: the telemetry
// cache, series store, command pipeline and session controller all
// render through it.
package ws

import (
	"encoding/json"
	"log"
	"sync"

	"semsview/internal/model"
	"semsview/internal/series"
)

// Frame types understood by the dashboard page.
const (
	frameSensor      = "sensor"       // one formatted sensor value
	frameChartPoint  = "chart_point"  // incremental chart append
	frameChartSeries = "chart_series" // full chart replace
	frameActuator    = "actuator"     // toggle/slider state for one device
	frameMode        = "mode"         // auto/manual flag
	frameControls    = "controls"     // controls enabled/disabled
	frameAlert       = "alert"        // blocking user-visible alert
	frameTransport   = "transport"    // broker connectivity
	frameRoom        = "room"         // active room changed
)

type frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub maintains the set of attached clients and broadcasts frames.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	logger     *log.Logger
}

// NewHub creates a hub. Run must be started on its own goroutine.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run owns the client set until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Printf("[WS] Client attached: %s", client.conn.RemoteAddr())
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Printf("[WS] Client detached: %s", client.conn.RemoteAddr())
			}

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow or gone; drop it rather than stall the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast marshals a frame and fans it out to every client.
func (h *Hub) Broadcast(frameType string, payload interface{}) {
	data, err := json.Marshal(frame{Type: frameType, Payload: payload})
	if err != nil {
		if h.logger != nil {
			h.logger.Printf("[WS] Failed to marshal %s frame: %v", frameType, err)
		}
		return
	}
	h.broadcast <- data
}

// ShowSensorValue implements the telemetry display sink.
func (h *Hub) ShowSensorValue(room string, sensor model.SensorKind, text string) {
	h.Broadcast(frameSensor, map[string]interface{}{
		"room":   room,
		"sensor": sensor,
		"value":  text,
	})
}

// PushPoint implements the incremental chart redraw.
func (h *Hub) PushPoint(room string, sensor model.SensorKind, p series.Point) {
	h.Broadcast(frameChartPoint, map[string]interface{}{
		"room":   room,
		"sensor": sensor,
		"point":  p,
	})
}

// ReplaceSeries implements the wholesale chart redraw.
func (h *Hub) ReplaceSeries(room string, sensor model.SensorKind, points []series.Point) {
	h.Broadcast(frameChartSeries, map[string]interface{}{
		"room":   room,
		"sensor": sensor,
		"points": points,
	})
}

// ShowActuator pushes a device's authoritative (state, level) pair.
// The page derives the slider's disabled/zeroed presentation from the
// state.
func (h *Hub) ShowActuator(room string, device model.Device, st model.ActuatorState) {
	h.Broadcast(frameActuator, map[string]interface{}{
		"room":   room,
		"device": device,
		"state":  st.State,
		"level":  st.Level,
	})
}

// ShowMode pushes the auto/manual indicator.
func (h *Hub) ShowMode(auto bool) {
	h.Broadcast(frameMode, map[string]interface{}{"auto": auto})
}

// SetControlsEnabled enables or disables every device control on the
// page. Auto mode disables, manual enables.
func (h *Hub) SetControlsEnabled(enabled bool) {
	h.Broadcast(frameControls, map[string]interface{}{"enabled": enabled})
}

// Alert raises a blocking user-visible alert on every client.
func (h *Hub) Alert(message string) {
	h.Broadcast(frameAlert, map[string]interface{}{"message": message})
}

// TransportStatus pushes broker connectivity so the page can grey out
// controls while disconnected.
func (h *Hub) TransportStatus(connected bool) {
	h.Broadcast(frameTransport, map[string]interface{}{"connected": connected})
}

// RoomChanged announces the newly active room.
func (h *Hub) RoomChanged(room string) {
	h.Broadcast(frameRoom, map[string]interface{}{"room": room})
}
