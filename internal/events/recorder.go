package events

import (
	"sync"

	"semsview/internal/model"
)

// Surface is the UI update interface the recorder sits in front of.
type Surface interface {
	RoomChanged(room string)
	ShowActuator(room string, device model.Device, st model.ActuatorState)
	ShowMode(auto bool)
	SetControlsEnabled(enabled bool)
	Alert(message string)
	TransportStatus(connected bool)
}

// Recorder forwards every UI update unchanged and logs the notable
// ones to the event store.
type Recorder struct {
	store *Store
	next  Surface

	mu       sync.Mutex
	lastMode *bool
}

// NewRecorder wraps next with event logging.
func NewRecorder(store *Store, next Surface) *Recorder {
	return &Recorder{store: store, next: next}
}

func (r *Recorder) RoomChanged(room string) {
	r.store.Add(EventRoomSwitch, room)
	r.next.RoomChanged(room)
}

func (r *Recorder) ShowActuator(room string, device model.Device, st model.ActuatorState) {
	r.next.ShowActuator(room, device, st)
}

func (r *Recorder) ShowMode(auto bool) {
	// ShowMode re-fires on every room activation; only transitions
	// are worth logging.
	r.mu.Lock()
	changed := r.lastMode == nil || *r.lastMode != auto
	r.lastMode = &auto
	r.mu.Unlock()

	if changed {
		mode := "manual"
		if auto {
			mode = "auto"
		}
		r.store.Add(EventModeChange, mode)
	}
	r.next.ShowMode(auto)
}

func (r *Recorder) SetControlsEnabled(enabled bool) {
	r.next.SetControlsEnabled(enabled)
}

func (r *Recorder) Alert(message string) {
	r.store.Add(EventAlert, message)
	r.next.Alert(message)
}

func (r *Recorder) TransportStatus(connected bool) {
	if connected {
		r.store.Add(EventBrokerUp, "")
	} else {
		r.store.Add(EventBrokerDown, "")
	}
	r.next.TransportStatus(connected)
}
