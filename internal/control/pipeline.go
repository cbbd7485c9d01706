// Package control turns UI gestures into debounced, idempotent
// device commands, fans them out to the broker and the store, and
// reconciles the UI when a device or the store disagrees.
package control

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"semsview/internal/model"
	"semsview/internal/mqtt"
	"semsview/internal/storage"
)

// DefaultDebounce is the quiet window that coalesces a burst of
// slider movements into one command.
const DefaultDebounce = 300 * time.Millisecond

// AutoModeAlert is the feedback shown when a manual gesture arrives
// while the external controller owns the devices. This is expected
// use, not an error condition.
const AutoModeAlert = "Please switch to MANUAL mode to control devices"

// ErrAutoMode is returned for gestures rejected by the auto-mode gate.
var ErrAutoMode = errors.New("device control rejected in auto mode")

// Transport publishes commands to the broker. Delivery is
// best-effort; a send while disconnected is dropped.
type Transport interface {
	SendCommand(topic string, payload interface{}) error
}

// Store persists actuator state records.
type Store interface {
	SetActuator(room string, device model.Device, st model.ActuatorState) error
	GetActuator(room string, device model.Device) (model.ActuatorState, error)
}

// Surface is the UI side of the pipeline: authoritative control
// state, mode indicator and user-visible alerts.
type Surface interface {
	ShowActuator(room string, device model.Device, st model.ActuatorState)
	ShowMode(auto bool)
	SetControlsEnabled(enabled bool)
	Alert(message string)
}

// Session exposes the shared session state. The pipeline re-reads it
// on every gesture and again when a debounce timer fires, so a mode
// flip or room switch is never acted on through a stale value.
type Session interface {
	CurrentRoom() string
	AutoMode() bool
	SetAutoMode(auto bool)
	RoomIsLive(room string) bool
}

// Pipeline is the actuator command pipeline.
type Pipeline struct {
	transport Transport
	store     Store
	ui        Surface
	session   Session
	logger    *log.Logger
	debounce  time.Duration

	mu     sync.Mutex
	timers map[model.Device]*time.Timer
}

// New creates a command pipeline. A non-positive debounce falls back
// to DefaultDebounce.
func New(transport Transport, store Store, ui Surface, session Session, debounce time.Duration, logger *log.Logger) *Pipeline {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Pipeline{
		transport: transport,
		store:     store,
		ui:        ui,
		session:   session,
		logger:    logger,
		debounce:  debounce,
		timers:    make(map[model.Device]*time.Timer),
	}
}

// Stop cancels any pending debounced commands.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for device, timer := range p.timers {
		timer.Stop()
		delete(p.timers, device)
	}
}

// HandleToggle processes a toggle gesture. sliderLevel is the paired
// slider's current value; OFF forces level 0. In auto mode the
// command is never sent: the toggle is reverted to its stored state
// and the user is told to switch modes.
func (p *Pipeline) HandleToggle(device model.Device, on bool, sliderLevel int) error {
	room := p.session.CurrentRoom()

	if p.session.AutoMode() {
		p.ui.Alert(AutoModeAlert)
		p.showStored(room, device)
		return ErrAutoMode
	}

	state := model.StateOff
	level := 0
	if on {
		state = model.StateOn
		level = sliderLevel
	}
	return p.dispatch(room, device, model.ActuatorState{State: state, Level: level})
}

// HandleSlider processes a slider gesture. The paired toggle is
// echoed optimistically at once; the command itself fires only after
// the debounce window has been quiet. In auto mode the controls are
// re-synced from the store and nothing is sent.
func (p *Pipeline) HandleSlider(device model.Device, level int) error {
	room := p.session.CurrentRoom()

	if p.session.AutoMode() {
		p.showStored(room, device)
		return ErrAutoMode
	}

	state := model.StateOff
	if level > 0 {
		state = model.StateOn
	}
	p.ui.ShowActuator(room, device, model.ActuatorState{State: state, Level: level})

	p.mu.Lock()
	if timer, ok := p.timers[device]; ok {
		timer.Stop()
	}
	p.timers[device] = time.AfterFunc(p.debounce, func() {
		p.fireSlider(room, device, level)
	})
	p.mu.Unlock()

	return nil
}

// fireSlider runs once per quiet window with the last level seen.
func (p *Pipeline) fireSlider(room string, device model.Device, level int) {
	p.mu.Lock()
	delete(p.timers, device)
	p.mu.Unlock()

	// The mode may have flipped while the timer was pending.
	if p.session.AutoMode() {
		p.showStored(room, device)
		return
	}

	state := model.StateOff
	if level > 0 {
		state = model.StateOn
	}
	if err := p.dispatch(room, device, model.ActuatorState{State: state, Level: level}); err != nil {
		if p.logger != nil {
			p.logger.Printf("[Control] Slider command for %s failed: %v", device, err)
		}
	}
}

// dispatch publishes the command and persists the state. The store is
// authoritative for cross-client consistency: a failed write reverts
// the UI and surfaces an error even if the publish went out.
func (p *Pipeline) dispatch(room string, device model.Device, st model.ActuatorState) error {
	cmd := model.Command{State: st.State, Level: st.Level, ID: uuid.NewString()}

	if p.session.RoomIsLive(room) {
		if err := p.transport.SendCommand(mqtt.ActuatorTopic(room, device), cmd); err != nil {
			// Best-effort: the device misses the command but the
			// store keeps every client consistent.
			if p.logger != nil {
				p.logger.Printf("[Control] Publish for %s/%s failed: %v", room, device, err)
			}
		}
	} else if p.logger != nil {
		p.logger.Printf("[Control] Simulated %s/%s: %s level=%d", room, device, st.State, st.Level)
	}

	if err := p.store.SetActuator(room, device, st); err != nil {
		p.ui.Alert(fmt.Sprintf("Failed to update %s", device))
		p.showStored(room, device)
		return fmt.Errorf("failed to persist %s state: %w", device, err)
	}

	p.ui.ShowActuator(room, device, st)
	return nil
}

// HandleModeChange flips the global auto/manual flag: persists it,
// publishes the global mode command, and updates the indicator and
// control interactivity. Flipping to the current value repeats the
// same end state.
func (p *Pipeline) HandleModeChange(auto bool) {
	p.session.SetAutoMode(auto)

	state := model.StateOff
	if auto {
		state = model.StateOn
	}
	if err := p.transport.SendCommand(mqtt.TopicAutoMode, model.ModeCommand{State: state}); err != nil {
		if p.logger != nil {
			p.logger.Printf("[Control] Mode publish failed: %v", err)
		}
	}

	p.ui.ShowMode(auto)
	p.ui.SetControlsEnabled(!auto)
}

// HandleReported applies a device acknowledgment. A rejection raises
// exactly one alert naming the device and touches nothing else; a
// normal ack overwrites the device's controls unconditionally, which
// also rolls back optimistic state for a command the device refused.
func (p *Pipeline) HandleReported(room string, device model.Device, rep model.Reported) {
	if rep.Rejected() {
		p.ui.Alert(fmt.Sprintf("Device %s rejected the last command", device))
		return
	}
	p.ui.ShowActuator(room, device, model.ActuatorState{State: rep.State, Level: rep.Level})
}

// showStored re-syncs one device's controls from the store. A device
// that was never written renders as OFF.
func (p *Pipeline) showStored(room string, device model.Device) {
	st, err := p.store.GetActuator(room, device)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && p.logger != nil {
			p.logger.Printf("[Control] Failed to read %s/%s state: %v", room, device, err)
		}
		st = model.ActuatorState{State: model.StateOff, Level: 0}
	}
	p.ui.ShowActuator(room, device, st)
}
